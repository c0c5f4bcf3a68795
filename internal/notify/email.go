package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// MailTransport delivers a fully formed RFC 5322 message.
type MailTransport interface {
	SendMail(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

type smtpTransport struct{}

func (smtpTransport) SendMail(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	return smtp.SendMail(addr, auth, from, to, msg)
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Email sends alerts through an SMTP relay to the route's recipients.
type Email struct {
	cfg       EmailConfig
	transport MailTransport
}

func NewEmail(cfg EmailConfig, transport MailTransport) *Email {
	if transport == nil {
		transport = smtpTransport{}
	}
	return &Email{cfg: cfg, transport: transport}
}

func (*Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, msg Message) Outcome {
	if len(msg.Targets) == 0 {
		return failed(e.Name(), ErrNoTargets)
	}
	if e.cfg.Host == "" {
		return failed(e.Name(), ErrNotConfigured)
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	body := e.compose(msg)

	// net/smtp has no context support; the send is abandoned, not
	// interrupted, when ctx expires.
	done := make(chan error, 1)
	go func() {
		done <- e.transport.SendMail(addr, auth, e.cfg.From, msg.Targets, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return failed(e.Name(), fmt.Errorf("smtp send: %w", err))
		}
		return sent(e.Name())
	case <-ctx.Done():
		return failed(e.Name(), ctx.Err())
	}
}

func (e *Email) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(e.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(strings.Join(msg.Targets, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue folds CR and LF into spaces so a value cannot start a new header.
func headerValue(v string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
}
