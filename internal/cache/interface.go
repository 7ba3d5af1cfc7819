package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type MessageCacheResult struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// MessageCache holds immutable history pages.
type MessageCache interface {
	Get(ctx context.Context, key string) (*MessageCacheResult, error)
	Set(ctx context.Context, key string, result *MessageCacheResult, ttl time.Duration) error
	BuildKey(roomID, before string, limit int) string
	Close() error
}
