// Package mailer sends transactional email through a configurable provider.
// The reset and activation flows depend only on the Sender interface; the
// provider behind it is a deployment choice.
package mailer

import (
	"context"
	"errors"
	"fmt"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Config selects and configures the mail provider.
type Config struct {
	Provider string          // sendgrid | mailgun | smtp | log
	SendGrid *SendGridConfig
	Mailgun  *MailgunConfig
	SMTP     *SMTPConfig
}

// New returns the Sender for the configured provider. The "log" provider
// writes mail to the log instead of delivering it, for development setups
// without mail credentials.
func New(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGrid == nil || cfg.SendGrid.Key == "" || cfg.SendGrid.From == "" {
			return nil, errors.New("incomplete sendgrid configuration")
		}
		return &SendGridSender{cfg: cfg.SendGrid}, nil
	case "mailgun":
		if cfg.Mailgun == nil || cfg.Mailgun.Key == "" || cfg.Mailgun.Domain == "" || cfg.Mailgun.From == "" {
			return nil, errors.New("incomplete mailgun configuration")
		}
		return &MailgunSender{cfg: cfg.Mailgun}, nil
	case "smtp":
		if cfg.SMTP == nil || cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
			return nil, errors.New("incomplete smtp configuration")
		}
		return &SMTPSender{cfg: cfg.SMTP}, nil
	case "log", "":
		return &LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
