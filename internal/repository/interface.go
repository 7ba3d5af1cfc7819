package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
)

// ErrNotFound is returned when a cursor message does not exist in the room.
var ErrNotFound = errors.New("not found")

// MessageRepository stores chat messages.
type MessageRepository interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
	// Recent returns at most limit messages of roomID, newest first. A
	// non-empty before restricts the page to messages older than that id.
	Recent(ctx context.Context, roomID, before string, limit int) ([]domain.ChatMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

// UserDirectory resolves mention targets.
type UserDirectory interface {
	FindByEmails(ctx context.Context, emails []string) ([]domain.DirectoryUser, error)
}
