package mailer

import (
	"context"

	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

// LogSender writes e-mails to the structured log instead of sending them.
// It is selected when no delivery provider is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, email *Email) error {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldRecipient, email.To).
		Str("subject", email.Subject).
		Int("html_bytes", len(email.HTML)).
		Msg("mail delivery disabled, e-mail logged only")
	return nil
}
