package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/community-chat/internal/cache"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/repository"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"golang.org/x/sync/singleflight"
)

type historyServiceImpl struct {
	repo     repository.MessageRepository
	cache    cache.MessageCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewHistoryService builds the history reader. msgCache may be nil.
func NewHistoryService(
	repo repository.MessageRepository,
	msgCache cache.MessageCache,
	cacheTTL time.Duration,
) HistoryService {
	return &historyServiceImpl{
		repo:     repo,
		cache:    msgCache,
		cacheTTL: cacheTTL,
	}
}

// GetHistory returns up to limit messages of roomID, oldest first. The
// latest page is always read from the store; pages behind a cursor never
// change and go through the cache.
func (s *historyServiceImpl) GetHistory(ctx context.Context, roomID, before string, limit int) (*domain.HistoryResponse, error) {
	if before == "" || s.cache == nil {
		messages, err := s.recent(ctx, roomID, before, limit)
		if err != nil {
			return nil, err
		}
		return &domain.HistoryResponse{Messages: messages}, nil
	}

	cacheKey := s.cache.BuildKey(roomID, before, limit)

	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, roomID, before, limit, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	page, ok := result.(*cache.MessageCacheResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	return &domain.HistoryResponse{Messages: page.Messages}, nil
}

func (s *historyServiceImpl) fetchWithCache(ctx context.Context, roomID, before string, limit int, cacheKey string) (*cache.MessageCacheResult, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	messages, err := s.recent(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}

	result := &cache.MessageCacheResult{Messages: messages}

	go func() {
		cacheCtx, cancel := context.WithTimeout(log.Detach(ctx), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, cacheKey, result, s.cacheTTL); err != nil {
			l := log.Ctx(cacheCtx)
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return result, nil
}

// recent reads a page newest first and returns it in chronological order.
func (s *historyServiceImpl) recent(ctx context.Context, roomID, before string, limit int) ([]domain.ChatMessage, error) {
	messages, err := s.repo.Recent(ctx, roomID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}
