package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

var errInvalidRecord = errors.New("invalid chat message record")

// Store is where consumed messages are written.
type Store interface {
	Save(ctx context.Context, msg *domain.ChatMessage) error
}

// Consumer reads chat messages from Kafka and writes them to a Store.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
	groupID  string
	store    Store
}

func NewConsumer(cfg config.KafkaConfig, store Store) (*Consumer, error) {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.GroupID,
		"auto.offset.reset":       cfg.AutoOffsetReset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	}
	if cfg.MaxPollIntervalMs > 0 {
		_ = cm.SetKey("max.poll.interval.ms", cfg.MaxPollIntervalMs)
	}
	if cfg.SessionTimeoutMs > 0 {
		_ = cm.SetKey("session.timeout.ms", cfg.SessionTimeoutMs)
	}
	if cfg.HeartbeatIntervalMs > 0 {
		_ = cm.SetKey("heartbeat.interval.ms", cfg.HeartbeatIntervalMs)
	}

	c, err := kafka.NewConsumer(cm)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: c,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		store:    store,
	}, nil
}

// Run polls until ctx is cancelled or Kafka reports a fatal error.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := c.handleMessage(ctx, e.Value); err != nil {
				l.Warn().Err(err).
					Int32("partition", e.TopicPartition.Partition).
					Str("offset", e.TopicPartition.Offset.String()).
					Msg("message not persisted")
			}
		case kafka.Error:
			l.Warn().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka error")
			if e.IsFatal() {
				return fmt.Errorf("fatal kafka error: %w", e)
			}
		default:
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var msg domain.ChatMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.ID == "" || msg.RoomID == "" || strings.TrimSpace(msg.Text) == "" {
		return errInvalidRecord
	}
	msg.CreatedAt = nil

	if err := c.store.Save(ctx, &msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldRoomID, msg.RoomID).
		Str(log.FieldMessageID, msg.ID).
		Msg("message persisted")

	return nil
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
