// Package notifier turns @email mentions into notification e-mails.
package notifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/mailer"
	"github.com/weiawesome/wes-io-live/community-chat/internal/mention"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"golang.org/x/sync/errgroup"
)

// Directory resolves lowercase e-mail addresses to users in one lookup.
type Directory interface {
	FindByEmails(ctx context.Context, emails []string) ([]domain.DirectoryUser, error)
}

// Publisher delivers an event to every connection of one user.
type Publisher interface {
	PublishJSONToUser(uid string, message interface{}) (int, error)
}

type Config struct {
	AppURL       string
	Brand        string
	ExcerptRunes int
	MaxParallel  int
}

type Notifier struct {
	directory Directory
	sender    mailer.Sender
	publisher Publisher
	cfg       Config
}

func New(directory Directory, sender mailer.Sender, publisher Publisher, cfg Config) *Notifier {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	return &Notifier{
		directory: directory,
		sender:    sender,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Notify e-mails every directory user mentioned in msg and returns how many
// e-mails were sent. Only the directory lookup can fail the call; each
// recipient's delivery is isolated and its failure only logged.
func (n *Notifier) Notify(ctx context.Context, msg *domain.ChatMessage) (int, error) {
	emails := mention.Extract(msg.Text)
	if len(emails) == 0 {
		return 0, nil
	}

	users, err := n.directory.FindByEmails(ctx, emails)
	if err != nil {
		return 0, fmt.Errorf("directory lookup failed: %w", err)
	}

	var sent atomic.Int32
	var g errgroup.Group
	g.SetLimit(n.cfg.MaxParallel)

	for _, u := range users {
		if u.Email == "" {
			continue
		}
		u := u
		g.Go(func() error {
			if n.dispatch(ctx, msg, u) {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(sent.Load()), nil
}

func (n *Notifier) dispatch(ctx context.Context, msg *domain.ChatMessage, u domain.DirectoryUser) bool {
	l := log.Ctx(ctx).With().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldRecipient, u.Email).
		Logger()

	email, err := n.compose(msg, u)
	if err != nil {
		l.Error().Err(err).Msg("mention e-mail not rendered")
		return false
	}

	if err := n.sender.Send(ctx, email); err != nil {
		l.Warn().Err(err).Msg("mention e-mail not sent")
		return false
	}
	l.Info().Msg("mention e-mail sent")

	if u.UID != "" {
		if _, err := n.publisher.PublishJSONToUser(u.UID, domain.NewMentionSentEvent(u.Email)); err != nil {
			l.Debug().Err(err).Msg("mention confirmation not published")
		}
	}
	return true
}

func (n *Notifier) compose(msg *domain.ChatMessage, u domain.DirectoryUser) (*mailer.Email, error) {
	sender := msg.User.Name
	if sender == "" {
		sender = fallbackSenderName
	}

	body, err := renderHTML(mentionView{
		Brand:      n.cfg.Brand,
		SenderName: sender,
		Excerpt:    excerpt(msg.Text, n.cfg.ExcerptRunes),
		Link:       n.cfg.AppURL + "/community",
	})
	if err != nil {
		return nil, err
	}

	return &mailer.Email{
		To:      u.Email,
		Subject: subject(n.cfg.Brand),
		HTML:    body,
		Text:    plainText(body),
	}, nil
}
