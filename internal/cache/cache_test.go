package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(config.RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestMessageCache(t *testing.T) {
	mr, client := newRedis(t)
	c := NewRedisMessageCache(client, "test")
	ctx := context.Background()

	key := c.BuildKey("general", "m10", 50)
	assert.Equal(t, "test:history:general:m10:50", key)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	page := &MessageCacheResult{Messages: []domain.ChatMessage{
		{ID: "m09", RoomID: "general", Text: "hi", User: domain.MessageUser{UID: "a", Name: "A"}, Ts: 9},
	}}
	require.NoError(t, c.Set(ctx, key, page, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, page.Messages, got.Messages)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, mr.Set(key, "{not json"))
	_, err = c.Get(ctx, key)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

type countingDirectory struct {
	users   map[string]domain.DirectoryUser
	queries [][]string
}

func (d *countingDirectory) FindByEmails(_ context.Context, emails []string) ([]domain.DirectoryUser, error) {
	d.queries = append(d.queries, append([]string(nil), emails...))
	var out []domain.DirectoryUser
	for _, e := range emails {
		if u, ok := d.users[e]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *countingDirectory) Upsert(_ context.Context, u domain.DirectoryUser) error {
	u.Email = strings.ToLower(u.Email)
	for email, existing := range d.users {
		if existing.UID == u.UID {
			delete(d.users, email)
		}
	}
	d.users[u.Email] = u
	return nil
}

func TestCachedDirectoryReadThrough(t *testing.T) {
	_, client := newRedis(t)
	next := &countingDirectory{users: map[string]domain.DirectoryUser{
		"bob@x.io":   {UID: "bob", Email: "bob@x.io", DisplayName: "Bob"},
		"carol@x.io": {UID: "carol", Email: "carol@x.io", DisplayName: "Carol"},
	}}
	dir := NewCachedDirectory(next, client, "test", time.Minute)
	ctx := context.Background()

	users, err := dir.FindByEmails(ctx, []string{"bob@x.io", "ghost@x.io"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].UID)

	users, err = dir.FindByEmails(ctx, []string{"carol@x.io", "bob@x.io", "ghost@x.io"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "carol", users[0].UID)
	assert.Equal(t, "bob", users[1].UID)

	require.Len(t, next.queries, 2)
	assert.Equal(t, []string{"carol@x.io", "ghost@x.io"}, next.queries[1])
}

func TestCachedDirectoryUpsertInvalidates(t *testing.T) {
	_, client := newRedis(t)
	next := &countingDirectory{users: map[string]domain.DirectoryUser{
		"bob@x.io": {UID: "bob", Email: "bob@x.io", DisplayName: "Bob"},
	}}
	dir := NewCachedDirectory(next, client, "test", time.Minute)
	ctx := context.Background()

	_, err := dir.FindByEmails(ctx, []string{"bob@x.io"})
	require.NoError(t, err)

	require.NoError(t, dir.Upsert(ctx, domain.DirectoryUser{UID: "bob", Email: "Bob@X.io", DisplayName: "Robert"}))

	users, err := dir.FindByEmails(ctx, []string{"bob@x.io"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Robert", users[0].DisplayName)
	assert.Len(t, next.queries, 2)
}

func TestCachedDirectoryEmailChangeDropsOldAddress(t *testing.T) {
	mr, client := newRedis(t)
	next := &countingDirectory{users: map[string]domain.DirectoryUser{
		"bob@x.io": {UID: "bob", Email: "bob@x.io", DisplayName: "Bob"},
	}}
	dir := NewCachedDirectory(next, client, "test", time.Minute)
	ctx := context.Background()

	users, err := dir.FindByEmails(ctx, []string{"bob@x.io"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, mr.Exists(dir.BuildKeyByUID("bob")))

	require.NoError(t, dir.Upsert(ctx, domain.DirectoryUser{UID: "bob", Email: "robert@x.io", DisplayName: "Bob"}))
	assert.False(t, mr.Exists(dir.BuildKeyByEmail("bob@x.io")))

	users, err = dir.FindByEmails(ctx, []string{"bob@x.io"})
	require.NoError(t, err)
	assert.Empty(t, users)

	users, err = dir.FindByEmails(ctx, []string{"robert@x.io"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].UID)
}
