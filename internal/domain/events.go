package domain

import (
	"encoding/json"
	"errors"
)

// Realtime event types. Inbound and outbound share the "message" tag.
const (
	EventJoin             = "join"
	EventLeave            = "leave"
	EventMessage          = "message"
	EventPing             = "ping"
	EventPong             = "pong"
	EventNotificationSent = "notification-sent"
)

// NotificationKindMention is the only notification kind emitted today.
const NotificationKindMention = "mention"

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrEmptyRoom      = errors.New("roomId is required")
	ErrEmptyText      = errors.New("text is empty")
)

// Envelope is the tag every inbound frame carries.
type Envelope struct {
	Type string `json:"type"`
}

// RoomEvent is the payload of join and leave.
type RoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// SenderHint carries the optional, client-supplied sender attributes.
type SenderHint struct {
	UID   string `json:"uid,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId"`
	Text   string      `json:"text"`
	User   *SenderHint `json:"user,omitempty"`
}

// BroadcastEvent is the outbound form of a ChatMessage.
type BroadcastEvent struct {
	Type string `json:"type"`
	ChatMessage
}

// NotificationSentEvent confirms a notification to the recipient's private room.
type NotificationSentEvent struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
	To   string `json:"to"`
}

type PongEvent struct {
	Type string `json:"type"`
}

// NewBroadcastEvent wraps msg for delivery to room subscribers.
func NewBroadcastEvent(msg *ChatMessage) *BroadcastEvent {
	return &BroadcastEvent{Type: EventMessage, ChatMessage: *msg}
}

// NewMentionSentEvent builds the confirmation sent after a mention e-mail.
func NewMentionSentEvent(email string) *NotificationSentEvent {
	return &NotificationSentEvent{Type: EventNotificationSent, Kind: NotificationKindMention, To: email}
}

// DecodeEvent parses an inbound frame into *RoomEvent, *MessageEvent or
// *Envelope (ping). Shapes whose required fields have the wrong JSON type
// are reported as ErrMalformedEvent; semantic checks are left to callers.
func DecodeEvent(data []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformedEvent
	}

	switch env.Type {
	case EventJoin, EventLeave:
		var evt RoomEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, ErrMalformedEvent
		}
		return &evt, nil

	case EventMessage:
		var evt MessageEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, ErrMalformedEvent
		}
		return &evt, nil

	case EventPing:
		return &env, nil

	default:
		return nil, ErrUnknownEvent
	}
}
