package mailer

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog/log"
)

// MailgunConfig holds the Mailgun credentials.
type MailgunConfig struct {
	Key    string
	Domain string
	From   string
}

// MailgunSender delivers mail through the Mailgun API.
type MailgunSender struct {
	cfg *MailgunConfig
}

// Send implements Sender.
func (s *MailgunSender) Send(ctx context.Context, to, subject, html string) error {
	mg := mailgun.NewMailgun(s.cfg.Domain, s.cfg.Key)

	message := mg.NewMessage(s.cfg.From, subject, "")
	message.SetHtml(html)
	if err := message.AddRecipient(to); err != nil {
		return fmt.Errorf("mailgun recipient rejected: %w", err)
	}

	_, id, err := mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun delivery failed: %w", err)
	}

	log.Debug().Str("to", to).Str("message_id", id).Msg("email queued by mailgun")
	return nil
}
