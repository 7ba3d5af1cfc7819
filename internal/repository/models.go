package repository

import (
	"time"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
)

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID        string    `gorm:"primaryKey;size:26"`
	RoomID    string    `gorm:"size:191;not null;index:idx_room_created,priority:1"`
	Text      string    `gorm:"type:text;not null"`
	UserUID   string    `gorm:"column:user_uid;size:191"`
	UserName  string    `gorm:"size:255"`
	UserEmail string    `gorm:"size:255"`
	Ts        int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_room_created,priority:2"`
}

func (MessageModel) TableName() string {
	return "chat_messages"
}

func (m *MessageModel) ToDomain() domain.ChatMessage {
	createdAt := m.CreatedAt
	return domain.ChatMessage{
		ID:     m.ID,
		RoomID: m.RoomID,
		Text:   m.Text,
		User: domain.MessageUser{
			UID:   m.UserUID,
			Name:  m.UserName,
			Email: m.UserEmail,
		},
		Ts:        m.Ts,
		CreatedAt: &createdAt,
	}
}

func MessageToModel(msg *domain.ChatMessage) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Text:      msg.Text,
		UserUID:   msg.User.UID,
		UserName:  msg.User.Name,
		UserEmail: msg.User.Email,
		Ts:        msg.Ts,
	}
}

// UserModel is the GORM model for the users table. Email is stored lowercase.
type UserModel struct {
	UID         string `gorm:"column:uid;primaryKey;size:191"`
	Email       string `gorm:"size:191;uniqueIndex;not null"`
	DisplayName string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() domain.DirectoryUser {
	return domain.DirectoryUser{
		UID:         m.UID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
	}
}
