// Package email sends job lifecycle notices through the configured provider.
package email

import (
	"context"
	"errors"
)

// Email holds the configuration for all supported providers. Provider selects
// which one is used; the matching section must be filled in.
type Email struct {
	Provider string         `json:"provider" yaml:"provider"`
	Mailgun  MailgunConfig  `json:"mailgun" yaml:"mailgun"`
	SendGrid SendGridConfig `json:"sendgrid" yaml:"sendgrid"`
	SMTP     SMTPConfig     `json:"smtp" yaml:"smtp"`
}

// Message is one notice to deliver.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender is a generic interface for sending emails.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) (string, error)
}

// NewSender returns the sender selected by cfg.Provider.
func NewSender(cfg *Email) (Sender, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, errors.New("email is not configured")
	}
	switch cfg.Provider {
	case "mailgun":
		if err := validateMailgunConfig(&cfg.Mailgun); err != nil {
			return nil, err
		}
		return &MailgunSender{Config: &cfg.Mailgun}, nil
	case "sendgrid":
		if err := validateSendGridConfig(&cfg.SendGrid); err != nil {
			return nil, err
		}
		return &SendGridSender{Config: &cfg.SendGrid}, nil
	case "smtp":
		if err := validateSMTPConfig(&cfg.SMTP); err != nil {
			return nil, err
		}
		return &LocalSMTPSender{Config: &cfg.SMTP}, nil
	default:
		return nil, errors.New("unknown email provider: " + cfg.Provider)
	}
}
