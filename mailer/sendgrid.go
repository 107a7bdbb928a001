package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridConfig holds the SendGrid credentials.
type SendGridConfig struct {
	Key      string
	From     string
	FromName string
}

// SendGridSender delivers mail through the SendGrid API.
type SendGridSender struct {
	cfg *SendGridConfig
}

// Send implements Sender.
func (s *SendGridSender) Send(ctx context.Context, to, subject, html string) error {
	from := mail.NewEmail(s.cfg.FromName, s.cfg.From)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), "", html)

	client := sendgrid.NewSendClient(s.cfg.Key)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid delivery failed: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid delivery failed: status %d", response.StatusCode)
	}

	log.Debug().Str("to", to).Int("status", response.StatusCode).Msg("email accepted by sendgrid")
	return nil
}
