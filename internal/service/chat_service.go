package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/weiawesome/wes-io-live/community-chat/internal/audit"
	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/internal/hub"
	"github.com/weiawesome/wes-io-live/community-chat/internal/tasks"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

type ChatServiceConfig struct {
	PersistTimeout time.Duration
	MentionTimeout time.Duration
}

type chatService struct {
	hub       *hub.Hub
	sink      MessageSink
	notifier  MentionNotifier
	directory DirectoryWriter
	runner    *tasks.Runner
	cfg       ChatServiceConfig
	now       func() time.Time
}

// NewChatService wires the ingestion pipeline. directory may be nil.
func NewChatService(
	h *hub.Hub,
	sink MessageSink,
	notifier MentionNotifier,
	directory DirectoryWriter,
	runner *tasks.Runner,
	cfg ChatServiceConfig,
) ChatService {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if cfg.MentionTimeout <= 0 {
		cfg.MentionTimeout = time.Minute
	}
	return &chatService{
		hub:       h,
		sink:      sink,
		notifier:  notifier,
		directory: directory,
		runner:    runner,
		cfg:       cfg,
		now:       time.Now,
	}
}

// HandleConnect registers an authenticated client, which subscribes it to
// its private room.
func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client) {
	s.hub.Register(c)

	id := c.Session.Identity
	audit.Log(ctx, audit.ActionAuth, id.UID, "connection authenticated")

	if s.directory != nil && id.Email != "" {
		user := domain.DirectoryUser{UID: id.UID, Email: id.Email, DisplayName: id.Name}
		s.runner.Go(ctx, "directory-upsert", s.cfg.PersistTimeout, func(ctx context.Context) error {
			return s.directory.Upsert(ctx, user)
		})
	}
}

func (s *chatService) HandleJoin(ctx context.Context, c *hub.Client, roomID string) bool {
	if !s.hub.Join(c, roomID) {
		return false
	}
	audit.LogWithTarget(ctx, audit.ActionJoinRoom, c.Session.Identity.UID, roomID, "joined room")
	return true
}

func (s *chatService) HandleLeave(ctx context.Context, c *hub.Client, roomID string) bool {
	if !s.hub.Leave(c, roomID) {
		return false
	}
	audit.LogWithTarget(ctx, audit.ActionLeaveRoom, c.Session.Identity.UID, roomID, "left room")
	return true
}

// HandleMessage validates evt, then stores, broadcasts and scans it for
// mentions. Only the broadcast happens before it returns. Validation errors
// and recovered panics are returned for logging; the caller must not tear
// down the connection because of them.
func (s *chatService) HandleMessage(ctx context.Context, c *hub.Client, evt *domain.MessageEvent) (msg *domain.ChatMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("message pipeline panic: %v", r)
		}
	}()

	if evt.RoomID == "" {
		return nil, domain.ErrEmptyRoom
	}
	if strings.TrimSpace(evt.Text) == "" {
		return nil, domain.ErrEmptyText
	}

	msg = s.buildMessage(c.Session.Identity, evt)

	l := log.Ctx(ctx).With().Str(log.FieldMessageID, msg.ID).Str(log.FieldRoomID, msg.RoomID).Logger()
	ctx = log.WithLogger(ctx, l)

	record := *msg
	s.runner.Go(ctx, "persist", s.cfg.PersistTimeout, func(ctx context.Context) error {
		return s.sink.Save(ctx, &record)
	})

	delivered, err := s.hub.PublishJSON(msg.RoomID, domain.NewBroadcastEvent(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode broadcast: %w", err)
	}
	audit.LogWithTarget(ctx, audit.ActionSendMessage, msg.User.UID, msg.RoomID, "message broadcast")
	l.Debug().Int("delivered", delivered).Msg("message delivered")

	if s.notifier != nil {
		scan := *msg
		s.runner.Go(ctx, "mentions", s.cfg.MentionTimeout, func(ctx context.Context) error {
			sent, err := s.notifier.Notify(ctx, &scan)
			if sent > 0 {
				audit.LogWithDetail(ctx, audit.ActionMentionSent, scan.User.UID, strconv.Itoa(sent), "mention notifications sent")
			}
			return err
		})
	}

	return msg, nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	s.hub.Unregister(c)
	audit.Log(ctx, audit.ActionDisconnect, c.Session.Identity.UID, "connection closed")
}

func (s *chatService) buildMessage(id domain.Identity, evt *domain.MessageEvent) *domain.ChatMessage {
	var hint domain.SenderHint
	if evt.User != nil {
		hint = *evt.User
	}

	user := domain.MessageUser{
		UID:   hint.UID,
		Name:  hint.Name,
		Email: hint.Email,
	}
	if user.UID == "" {
		user.UID = id.UID
	}
	if user.Name == "" {
		user.Name = domain.DefaultUserName
	}

	now := s.now()
	return &domain.ChatMessage{
		ID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		RoomID: evt.RoomID,
		Text:   evt.Text,
		User:   user,
		Ts:     now.UnixMilli(),
	}
}
