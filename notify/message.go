package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/vigil/backend"
	"github.com/xraph/vigil/id"
)

// Fallback values used when a failure event lacks a field.
const (
	UnknownDescription = "Unknown"
	DefaultChannel     = "default"
	UnknownError       = "Unknown error"
)

// SubjectPrefix starts every alert subject.
const SubjectPrefix = "Queue job failed: "

// Message is one failure alert.
type Message struct {
	ID          id.NotificationID `json:"id"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	BackendID   string            `json:"backendId,omitempty"`
	JobID       string            `json:"jobId"`
	Description string            `json:"description"`
	Channel     string            `json:"channel"`
	Error       string            `json:"error"`
	Link        string            `json:"link"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Compose builds the alert for ev addressed to to. Missing event fields are
// replaced by their fallbacks.
func Compose(ev backend.FailureEvent, to, link string, now time.Time) *Message {
	m := &Message{
		ID:          id.NewNotificationID(),
		To:          to,
		BackendID:   ev.BackendID,
		JobID:       ev.JobID,
		Description: fallback(ev.Description, UnknownDescription),
		Channel:     fallback(ev.Channel, DefaultChannel),
		Error:       fallback(ev.Error, UnknownError),
		Link:        link,
		CreatedAt:   now.UTC(),
	}
	m.Subject = SubjectPrefix + m.Description
	m.Body = renderBody(m)
	return m
}

func renderBody(m *Message) string {
	var b strings.Builder
	b.WriteString("A queue job has failed.\n\n")
	fmt.Fprintf(&b, "- Job: %s\n", m.Description)
	fmt.Fprintf(&b, "- Queue: %s\n", m.Channel)
	fmt.Fprintf(&b, "- Error: %s\n", m.Error)
	if m.Link != "" {
		fmt.Fprintf(&b, "\nReview in the queue monitor: %s\n", m.Link)
	}
	return b.String()
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
