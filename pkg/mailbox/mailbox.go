// Package mailbox is the durable keyed store where responders deposit
// completion records. Entries are keyed by (client, kind); at most one entry
// exists per key, and consumption is a single atomic delete.
package mailbox

import (
	"context"
	"errors"

	"github.com/edgefleet/flotilla/pkg/fl"
)

var (
	// ErrDuplicateEntry is returned by Put when an entry already exists under
	// the same (client, kind) key. The previous entry must be consumed first.
	ErrDuplicateEntry = errors.New("mailbox entry already exists for key")

	ErrInvalidEntry = errors.New("invalid mailbox entry")
)

// Entry is one completion record. Numeric fields are carried as strings, the
// way the schema-less store presents them; interpretation happens at the
// consumer.
type Entry struct {
	Client   string            `gorm:"primaryKey;column:client"`
	Kind     fl.Op             `gorm:"primaryKey;column:type"`
	Path     string            `gorm:"column:path"`
	TrainLen string            `gorm:"column:train_len"`
	Loss     string            `gorm:"column:loss"`
	Dict     map[string]string `gorm:"column:dict;serializer:json"`
	Accuracy map[string]string `gorm:"column:accuracy;serializer:json"`
}

func (Entry) TableName() string {
	return "result_entries"
}

func (e Entry) Validate() error {
	if e.Client == "" || e.Kind == "" {
		return ErrInvalidEntry
	}

	return nil
}

// Mailbox is the store contract. Get returns at most one entry by
// construction of the composite key; the "first of many rows" ambiguity does
// not exist at this layer. Delete reports whether a row was actually removed,
// which is what defines a successful consume.
type Mailbox interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, client string, kind fl.Op) (Entry, bool, error)
	Delete(ctx context.Context, client string, kind fl.Op) (bool, error)
}
