package notify

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/xraph/vigil/backend"
)

func TestSMTPMailer_Send(t *testing.T) {
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Port: 2525, Username: "u", Password: "p", From: "vigil@example.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	msg := Compose(backend.FailureEvent{JobID: "1", Description: "Nightly\r\nBcc: x@evil", Attempt: 1},
		"ops@example.com", "http://localhost:8080/queue-monitor", time.Now())
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAddr != "mail.example.com:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected PLAIN auth when a username is set")
	}
	if gotFrom != "vigil@example.com" || len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("envelope from=%q to=%v", gotFrom, gotTo)
	}
	if strings.Contains(gotMsg, "\r\nBcc:") {
		t.Errorf("subject line breaks must be stripped:\n%s", gotMsg)
	}
	if !strings.Contains(gotMsg, "Subject: Queue job failed: Nightly  Bcc: x@evil\r\n") {
		t.Errorf("unexpected subject header:\n%s", gotMsg)
	}
}

func TestSMTPMailer_WrapsTransportError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"})
	transport := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return transport }

	err := m.Send(context.Background(), Compose(backend.FailureEvent{}, "ops@example.com", "", time.Now()))
	if !errors.Is(err, transport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "mail.example.com:25") {
		t.Errorf("error %q should name the server", err)
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not dial with a canceled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, Compose(backend.FailureEvent{}, "ops@example.com", "", time.Now())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSMTPMailer_EncodesNonASCIISubject(t *testing.T) {
	var gotMsg string
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", From: "vigil@example.com"})
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	msg := Compose(backend.FailureEvent{JobID: "1", Description: "Rechnung für Müller", Attempt: 1},
		"ops@example.com", "", time.Now())
	if err := m.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var subject string
	for _, line := range strings.Split(gotMsg, "\r\n") {
		if v, ok := strings.CutPrefix(line, "Subject: "); ok {
			subject = v
			break
		}
	}
	if !strings.HasPrefix(subject, "=?utf-8?q?") {
		t.Fatalf("subject %q is not RFC 2047 encoded", subject)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded != msg.Subject {
		t.Errorf("decoded subject = %q, want %q", decoded, msg.Subject)
	}
}
