package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridConfig holds the configuration for SendGrid
type SendGridConfig struct {
	Key  string `json:"key" yaml:"key"`
	From string `json:"from" yaml:"from"`
}

// SendGridSender implements Sender for SendGrid
type SendGridSender struct {
	Config *SendGridConfig
}

func (s *SendGridSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	from := mail.NewEmail("", s.Config.From)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	client := sendgrid.NewSendClient(s.Config.Key)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return "", err
	}
	if response.StatusCode != 202 {
		return "", fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

func validateSendGridConfig(config *SendGridConfig) error {
	if config.Key == "" || config.From == "" {
		return errors.New("invalid SendGrid configuration")
	}
	return nil
}
