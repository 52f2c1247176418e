package discovery

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var caseBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// Label derives a display label from a backend id by splitting camelCase
// boundaries and capitalizing each word: "emailQueue" becomes "Email Queue".
func Label(backendID string) string {
	spaced := caseBoundary.ReplaceAllString(backendID, "$1 $2")
	words := strings.Split(spaced, " ")
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
