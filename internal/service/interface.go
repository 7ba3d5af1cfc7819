package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/hub"
)

// MessageSink receives every accepted message for durable storage. It is
// either the repository itself or the Kafka producer feeding the persist
// worker.
type MessageSink interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
}

// MentionNotifier handles the mentions of an accepted message.
type MentionNotifier interface {
	Notify(ctx context.Context, msg *domain.ChatMessage) (int, error)
}

// DirectoryWriter records verified identities so they can be mentioned.
type DirectoryWriter interface {
	Upsert(ctx context.Context, user domain.DirectoryUser) error
}

type ChatService interface {
	HandleConnect(ctx context.Context, client *hub.Client)
	HandleJoin(ctx context.Context, client *hub.Client, roomID string) bool
	HandleLeave(ctx context.Context, client *hub.Client, roomID string) bool
	HandleMessage(ctx context.Context, client *hub.Client, evt *domain.MessageEvent) (*domain.ChatMessage, error)
	HandleDisconnect(ctx context.Context, client *hub.Client)
}

type HistoryService interface {
	GetHistory(ctx context.Context, roomID, before string, limit int) (*domain.HistoryResponse, error)
}
