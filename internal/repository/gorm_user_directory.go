package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-live/community-chat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUserDirectory implements UserDirectory over the users table.
type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// FindByEmails matches emails exactly against the lowercase email column.
// Unknown addresses are simply absent from the result.
func (d *GormUserDirectory) FindByEmails(ctx context.Context, emails []string) ([]domain.DirectoryUser, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	var models []UserModel
	if err := d.db.WithContext(ctx).Where("email IN ?", emails).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := make([]domain.DirectoryUser, 0, len(models))
	for i := range models {
		users = append(users, models[i].ToDomain())
	}
	return users, nil
}

// Upsert records a user, refreshing email and display name when the uid
// already exists.
func (d *GormUserDirectory) Upsert(ctx context.Context, user domain.DirectoryUser) error {
	model := &UserModel{
		UID:         user.UID,
		Email:       strings.ToLower(strings.TrimSpace(user.Email)),
		DisplayName: user.DisplayName,
	}
	if model.UID == "" || model.Email == "" {
		return fmt.Errorf("user requires uid and email")
	}

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
