package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
)

// SMTPConfig holds the configuration for plain SMTP sending
type SMTPConfig struct {
	SMTPHost string `json:"host" yaml:"host"`
	SMTPPort string `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
}

// LocalSMTPSender implements Sender for plain SMTP
type LocalSMTPSender struct {
	Config *SMTPConfig
}

func (s *LocalSMTPSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	auth := smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.SMTPHost)
	to := []string{recipient}
	body := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", recipient, msg.Subject, msg.Body))

	err := smtp.SendMail(fmt.Sprintf("%s:%s", s.Config.SMTPHost, s.Config.SMTPPort), auth, s.Config.From, to, body)
	if err != nil {
		return "", errors.New("failed to send email")
	}
	return "", nil
}

func validateSMTPConfig(config *SMTPConfig) error {
	if config.SMTPHost == "" || config.SMTPPort == "" || config.From == "" {
		return errors.New("invalid SMTP configuration")
	}
	return nil
}
