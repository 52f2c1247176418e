package payload

import (
	"encoding"
	"fmt"
	"io"
	"time"
)

// Placeholder rendered for fields that hold a live resource.
const ResourcePlaceholder = "[resource]"

// Introspectable is implemented by payload types that can list their fields
// for display.
type Introspectable interface {
	Fields() map[string]any
}

// Fields is a plain mapping that satisfies Introspectable. Payloads decoded
// without a registered class use it.
type Fields map[string]any

// Fields implements Introspectable.
func (f Fields) Fields() map[string]any { return f }

// TypePlaceholder returns the opaque placeholder for a value, e.g.
// "[*billing.Invoice]".
func TypePlaceholder(v any) string {
	return fmt.Sprintf("[%T]", v)
}

// DisplayValue converts one field value into something safe to serialize
// and show. Scalars pass through, text-representable values become their
// text, JSON-native containers are rendered recursively, resources become
// ResourcePlaceholder and everything else becomes a TypePlaceholder.
func DisplayValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case time.Duration:
		return x.String()
	case io.Closer:
		return ResourcePlaceholder
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return TypePlaceholder(v)
		}
		return string(b)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = DisplayValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = DisplayValue(e)
		}
		return out
	case []string:
		return x
	default:
		return TypePlaceholder(v)
	}
}
