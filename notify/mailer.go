package notify

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// Mailer delivers a composed message. Delivery guarantees are the
// mailer's own concern.
type Mailer interface {
	Send(ctx context.Context, m *Message) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, m *Message) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, m *Message) error { return f(ctx, m) }

// ──────────────────────────────────────────────────
// Log mailer
// ──────────────────────────────────────────────────

// LogMailer writes messages to a logger instead of delivering them. It is
// the default when no SMTP host is configured.
type LogMailer struct {
	Logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

// Send implements Mailer.
func (l *LogMailer) Send(ctx context.Context, m *Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "failure notification",
		slog.String("notification_id", m.ID.String()),
		slog.String("to", m.To),
		slog.String("subject", m.Subject),
		slog.String("job_id", m.JobID),
		slog.String("channel", m.Channel),
	)
	return nil
}

// ──────────────────────────────────────────────────
// SMTP mailer
// ──────────────────────────────────────────────────

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns host:port, defaulting the port to 25.
func (c SMTPConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 25
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SMTPMailer delivers messages over SMTP with optional PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send implements Mailer. The context is only checked before dialing;
// net/smtp does not accept one.
func (s *SMTPMailer) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(s.cfg.Addr(), auth, s.cfg.From, []string{m.To}, s.encode(m)); err != nil {
		return fmt.Errorf("vigil/notify: smtp %s: %w", s.cfg.Addr(), err)
	}
	return nil
}

func (s *SMTPMailer) encode(m *Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerSafe(m.Subject)))
	fmt.Fprintf(&b, "Message-ID: <%s@vigil>\r\n", m.ID.String())
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// headerSafe strips line breaks so event text cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
