package mailer

import (
	"fmt"

	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
)

const (
	ProviderAuto     = "auto"
	ProviderSendGrid = "sendgrid"
	ProviderSMTP     = "smtp"
	ProviderLog      = "log"
)

// ResolveProvider picks the concrete provider for "auto": SendGrid when an
// API key is configured, then SMTP when a host is, else the log sender.
func ResolveProvider(cfg config.MailConfig) string {
	if cfg.Provider != "" && cfg.Provider != ProviderAuto {
		return cfg.Provider
	}
	switch {
	case cfg.SendGridAPIKey != "":
		return ProviderSendGrid
	case cfg.SMTPHost != "":
		return ProviderSMTP
	default:
		return ProviderLog
	}
}

// New builds the Sender selected by cfg.
func New(cfg config.MailConfig) (Sender, error) {
	fromEmail := cfg.FromEmail
	if fromEmail == "" {
		fromEmail = cfg.SMTPUser
	}

	switch provider := ResolveProvider(cfg); provider {
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("mail provider %q requires sendgrid_api_key", provider)
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.FromName, fromEmail), nil
	case ProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mail provider %q requires smtp_host", provider)
		}
		return NewSMTPSender(SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPass,
			FromName:  cfg.FromName,
			FromEmail: fromEmail,
			Timeout:   cfg.Timeout,
		}), nil
	case ProviderLog:
		return LogSender{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
