package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

// Directory is the store wrapped by CachedDirectory.
type Directory interface {
	FindByEmails(ctx context.Context, emails []string) ([]domain.DirectoryUser, error)
	Upsert(ctx context.Context, user domain.DirectoryUser) error
}

// CachedDirectory is a read-through Redis cache in front of a Directory.
// Addresses the directory does not know are not cached, so a user who
// registers later becomes mentionable immediately.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCachedDirectory(next Directory, client *redis.Client, prefix string, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *CachedDirectory) BuildKeyByEmail(email string) string {
	return fmt.Sprintf("%s:user:email:%s", c.prefix, email)
}

// BuildKeyByUID names the entry recording which address a user was cached
// under, so an address change can drop the old entry.
func (c *CachedDirectory) BuildKeyByUID(uid string) string {
	return fmt.Sprintf("%s:user:uid:%s", c.prefix, uid)
}

func (c *CachedDirectory) FindByEmails(ctx context.Context, emails []string) ([]domain.DirectoryUser, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	keys := make([]string, len(emails))
	for i, e := range emails {
		keys[i] = c.BuildKeyByEmail(e)
	}

	found := make(map[string]domain.DirectoryUser, len(emails))
	var missing []string

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("user cache get error")
		missing = emails
	} else {
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, emails[i])
				continue
			}
			var u domain.DirectoryUser
			if err := json.Unmarshal([]byte(s), &u); err != nil {
				missing = append(missing, emails[i])
				continue
			}
			found[emails[i]] = u
		}
	}

	if len(missing) > 0 {
		users, err := c.next.FindByEmails(ctx, missing)
		if err != nil {
			return nil, err
		}
		c.store(ctx, users)
		for _, u := range users {
			found[u.Email] = u
		}
	}

	out := make([]domain.DirectoryUser, 0, len(found))
	for _, e := range emails {
		if u, ok := found[e]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *CachedDirectory) store(ctx context.Context, users []domain.DirectoryUser) {
	if len(users) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, u := range users {
		data, err := json.Marshal(u)
		if err != nil {
			continue
		}
		pipe.Set(ctx, c.BuildKeyByEmail(u.Email), data, c.ttl)
		if u.UID != "" {
			pipe.Set(ctx, c.BuildKeyByUID(u.UID), u.Email, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("user cache set error")
	}
}

// Upsert writes through to the directory and drops the cached entries for
// the user's new address and, when it changed, the previous one.
func (c *CachedDirectory) Upsert(ctx context.Context, user domain.DirectoryUser) error {
	if err := c.next.Upsert(ctx, user); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if user.UID == "" {
		return c.Invalidate(ctx, email)
	}

	uidKey := c.BuildKeyByUID(user.UID)
	previous, err := c.client.Get(ctx, uidKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get from redis: %w", err)
	}

	keys := []string{c.BuildKeyByEmail(email), uidKey}
	if previous != "" && previous != email {
		keys = append(keys, c.BuildKeyByEmail(previous))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for email.
func (c *CachedDirectory) Invalidate(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, c.BuildKeyByEmail(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}
