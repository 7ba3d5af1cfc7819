package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/weiawesome/wes-io-live/community-chat/internal/cassandra"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
)

const (
	cqlInsertMessage = `
		INSERT INTO messages_by_room (
			room_id, created_at, message_id, user_uid, user_name, user_email, text, ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	cqlInsertCursor = `
		INSERT INTO message_cursors (room_id, message_id, created_at) VALUES (?, ?, ?)`

	cqlSelectCursor = `
		SELECT created_at FROM message_cursors WHERE room_id = ? AND message_id = ?`

	cqlRecent = `
		SELECT message_id, room_id, user_uid, user_name, user_email, text, ts, created_at
		FROM messages_by_room
		WHERE room_id = ?
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?`

	cqlRecentBefore = `
		SELECT message_id, room_id, user_uid, user_name, user_email, text, ts, created_at
		FROM messages_by_room
		WHERE room_id = ? AND (created_at, message_id) < (?, ?)
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?`
)

// CassandraMessageRepository stores messages in messages_by_room, clustered
// by (created_at, message_id) like the SQL store's ordering.
type CassandraMessageRepository struct {
	client  *cassandra.Client
	session *gocql.Session
	now     func() time.Time
}

func NewCassandraMessageRepository(client *cassandra.Client) *CassandraMessageRepository {
	return &CassandraMessageRepository{
		client:  client,
		session: client.Session(),
		now:     time.Now,
	}
}

// Save writes the message and its cursor entry in one logged batch.
// created_at is stamped here at millisecond precision, the resolution of a
// CQL timestamp, so cursor bounds compare exactly.
func (r *CassandraMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	createdAt := r.now().UTC().Truncate(time.Millisecond)

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(cqlInsertMessage,
		msg.RoomID,
		createdAt,
		msg.ID,
		msg.User.UID,
		msg.User.Name,
		msg.User.Email,
		msg.Text,
		msg.Ts,
	)
	batch.Query(cqlInsertCursor, msg.RoomID, msg.ID, createdAt)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	msg.CreatedAt = &createdAt
	return nil
}

// cursorBound is the (created_at, message_id) position a page starts below.
type cursorBound struct {
	createdAt time.Time
	messageID string
}

// recentStatement builds the page query. A nil cursor selects the latest page.
func recentStatement(roomID string, cursor *cursorBound, limit int) (string, []interface{}) {
	if cursor == nil {
		return cqlRecent, []interface{}{roomID, limit}
	}
	return cqlRecentBefore, []interface{}{roomID, cursor.createdAt, cursor.messageID, limit}
}

func (r *CassandraMessageRepository) cursor(ctx context.Context, roomID, messageID string) (*cursorBound, error) {
	var createdAt time.Time
	err := r.session.Query(cqlSelectCursor, roomID, messageID).WithContext(ctx).Scan(&createdAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cursor: %w", err)
	}
	return &cursorBound{createdAt: createdAt, messageID: messageID}, nil
}

func (r *CassandraMessageRepository) Recent(ctx context.Context, roomID, before string, limit int) ([]domain.ChatMessage, error) {
	var bound *cursorBound
	if before != "" {
		c, err := r.cursor(ctx, roomID, before)
		if err != nil {
			return nil, err
		}
		bound = c
	}

	query, args := recentStatement(roomID, bound, limit)
	iter := r.session.Query(query, args...).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var msg domain.ChatMessage
	var createdAt time.Time

	for iter.Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.User.UID,
		&msg.User.Name,
		&msg.User.Email,
		&msg.Text,
		&msg.Ts,
		&createdAt,
	) {
		ts := createdAt.UTC()
		msg.CreatedAt = &ts
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

func (r *CassandraMessageRepository) Ping(ctx context.Context) error {
	return r.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Exec()
}

func (r *CassandraMessageRepository) Close() error {
	r.client.Close()
	return nil
}
