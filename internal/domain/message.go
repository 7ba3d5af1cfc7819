package domain

import "time"

// DefaultUserName is used when a sender supplies no display name.
const DefaultUserName = "User"

// MessageUser is the sender record embedded in every ChatMessage.
type MessageUser struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ChatMessage is the durable unit of conversation. CreatedAt is assigned by
// the store on write and is zero until the message has been read back.
type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	Text      string      `json:"text"`
	User      MessageUser `json:"user"`
	Ts        int64       `json:"ts"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}

// HistoryResponse is the body of the history endpoint.
type HistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}
