package config

import (
	"github.com/ncobase/spacearc/email"

	"github.com/spf13/viper"
)

// Email represents the email configuration
type Email = email.Email

// getEmailConfig returns the email configuration
func getEmailConfig(v *viper.Viper) *Email {
	if !v.IsSet("email") {
		return nil
	}
	return &Email{
		Provider: v.GetString("email.provider"),
		Mailgun:  getMailgunConfig(v),
		SendGrid: getSendGridConfig(v),
		SMTP:     getSMTPConfig(v),
	}
}

func getMailgunConfig(v *viper.Viper) email.MailgunConfig {
	return email.MailgunConfig{
		Key:    v.GetString("email.mailgun.key"),
		Domain: v.GetString("email.mailgun.domain"),
		From:   v.GetString("email.mailgun.from"),
	}
}

func getSendGridConfig(v *viper.Viper) email.SendGridConfig {
	return email.SendGridConfig{
		Key:  v.GetString("email.sendgrid.key"),
		From: v.GetString("email.sendgrid.from"),
	}
}

func getSMTPConfig(v *viper.Viper) email.SMTPConfig {
	return email.SMTPConfig{
		SMTPHost: v.GetString("email.smtp.host"),
		SMTPPort: v.GetString("email.smtp.port"),
		Username: v.GetString("email.smtp.username"),
		Password: v.GetString("email.smtp.password"),
		From:     v.GetString("email.smtp.from"),
	}
}
