package repository

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/community-chat/internal/cassandra"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/database"
	"gorm.io/gorm"
)

// Stores bundles the persistence backends selected by configuration. The
// user directory always lives in the SQL database; messages live there or
// in Cassandra.
type Stores struct {
	DB       *gorm.DB
	Messages MessageRepository
	Users    *GormUserDirectory
	driver   string
}

func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Stores{
		DB:     db,
		Users:  NewGormUserDirectory(db),
		driver: cfg.Storage.Driver,
	}

	switch cfg.Storage.Driver {
	case config.StorageCassandra:
		if err := database.AutoMigrate(db, &UserModel{}); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		client, err := cassandra.NewClient(cfg.Cassandra)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		if err := client.EnsureSchema(ctx); err != nil {
			client.Close()
			_ = database.Close(db)
			return nil, err
		}
		s.Messages = NewCassandraMessageRepository(client)

	case config.StorageSQL, "":
		if err := database.AutoMigrate(db, &MessageModel{}, &UserModel{}); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		s.Messages = NewGormMessageRepository(db)

	default:
		_ = database.Close(db)
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}

	return s, nil
}

func (s *Stores) Close() error {
	if s.driver == config.StorageCassandra {
		_ = s.Messages.Close()
	}
	return database.Close(s.DB)
}
