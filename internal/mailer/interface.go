// Package mailer delivers outbound notification e-mail.
package mailer

import "context"

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one e-mail. Implementations are safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}
