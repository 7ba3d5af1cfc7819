package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/database"
	"gorm.io/gorm"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Save inserts msg. created_at is assigned by the store.
func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	model := MessageToModel(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	createdAt := model.CreatedAt
	msg.CreatedAt = &createdAt
	return nil
}

func (r *GormMessageRepository) Recent(ctx context.Context, roomID, before string, limit int) ([]domain.ChatMessage, error) {
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)

	if before != "" {
		var cursor MessageModel
		err := r.db.WithContext(ctx).
			Select("id", "created_at").
			First(&cursor, "id = ? AND room_id = ?", before, roomID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to load cursor: %w", err)
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var models []MessageModel
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	messages := make([]domain.ChatMessage, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].ToDomain())
	}
	return messages, nil
}

func (r *GormMessageRepository) Ping(ctx context.Context) error {
	return database.Ping(ctx, r.db)
}

func (r *GormMessageRepository) Close() error {
	return database.Close(r.db)
}
