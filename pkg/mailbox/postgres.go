package mailbox

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/edgefleet/flotilla/pkg/fl"
)

// PostgresMailbox is a Mailbox backed by a single result_entries table with a
// composite (client, type) primary key. Row deletion is atomic, which makes
// delete-on-consume safe across processes.
type PostgresMailbox struct {
	db *gorm.DB
}

var _ Mailbox = (*PostgresMailbox)(nil)

func NewPostgresMailbox(dsn string) (*PostgresMailbox, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mailbox database: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mailbox schema: %w", err)
	}

	return &PostgresMailbox{db: db}, nil
}

func (m *PostgresMailbox) Put(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: (%s, %s)", ErrDuplicateEntry, entry.Client, entry.Kind)
		}

		return fmt.Errorf("failed to store mailbox entry: %w", err)
	}

	return nil
}

func (m *PostgresMailbox) Get(ctx context.Context, client string, kind fl.Op) (Entry, bool, error) {
	var entry Entry
	err := m.db.WithContext(ctx).
		Where("client = ? AND type = ?", client, string(kind)).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, false, nil
		}

		return Entry{}, false, fmt.Errorf("failed to query mailbox: %w", err)
	}

	return entry, true, nil
}

func (m *PostgresMailbox) Delete(ctx context.Context, client string, kind fl.Op) (bool, error) {
	res := m.db.WithContext(ctx).
		Where("client = ? AND type = ?", client, string(kind)).
		Delete(&Entry{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete mailbox entry: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}
