package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// SMTPConfig holds plain SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	cfg *SMTPConfig
}

// Send implements Sender. net/smtp has no context support; cancellation is
// bounded by the relay's own timeouts.
func (s *SMTPSender) Send(_ context.Context, to, subject, html string) error {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		to, s.cfg.From, subject, html))

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}

// LogSender writes mail to the log instead of delivering it.
type LogSender struct{}

// Send implements Sender.
func (l *LogSender) Send(_ context.Context, to, subject, html string) error {
	log.Info().Str("to", to).Str("subject", subject).Str("html", html).Msg("mail (log provider)")
	return nil
}
