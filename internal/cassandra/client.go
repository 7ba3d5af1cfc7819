// Package cassandra manages the gocql session used by the message store.
package cassandra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
)

// Schema lists the statements EnsureSchema runs, in order. messages_by_room
// serves history pages newest first; message_cursors resolves a page cursor
// (a message id) to its position in that ordering.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS messages_by_room (
		room_id    text,
		created_at timestamp,
		message_id text,
		user_uid   text,
		user_name  text,
		user_email text,
		text       text,
		ts         bigint,
		PRIMARY KEY ((room_id), created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC)`,
	`CREATE TABLE IF NOT EXISTS message_cursors (
		room_id    text,
		message_id text,
		created_at timestamp,
		PRIMARY KEY ((room_id, message_id))
	)`,
}

// Client wraps the Cassandra session.
type Client struct {
	session *gocql.Session
}

// NewClient creates a new Cassandra client and establishes a connection.
func NewClient(cfg config.CassandraConfig) (*Client, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = ParseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.MaxPreparedStmt > 0 {
		cluster.MaxPreparedStmts = cfg.MaxPreparedStmt
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create Cassandra session: %w", err)
	}

	return &Client{session: session}, nil
}

// EnsureSchema creates the message tables inside the configured keyspace.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := c.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (c *Client) Session() *gocql.Session {
	return c.session
}

func (c *Client) Close() {
	if c.session != nil {
		c.session.Close()
	}
}

// ParseConsistency converts a consistency name such as "LOCAL_QUORUM" to
// gocql.Consistency. Unknown names fall back to LOCAL_QUORUM.
func ParseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalQuorum
	}
}
