package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgefleet/flotilla/pkg/fl"
)

type key struct {
	client string
	kind   fl.Op
}

// MemoryMailbox is an in-process Mailbox for tests and single-process
// deployments.
type MemoryMailbox struct {
	mu      sync.Mutex
	entries map[key]Entry
}

var _ Mailbox = (*MemoryMailbox)(nil)

func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{
		entries: make(map[key]Entry),
	}
}

func (m *MemoryMailbox) Put(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{client: entry.Client, kind: entry.Kind}
	if _, exists := m.entries[k]; exists {
		return fmt.Errorf("%w: (%s, %s)", ErrDuplicateEntry, entry.Client, entry.Kind)
	}
	m.entries[k] = entry

	return nil
}

func (m *MemoryMailbox) Get(ctx context.Context, client string, kind fl.Op) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key{client: client, kind: kind}]

	return entry, ok, nil
}

func (m *MemoryMailbox) Delete(ctx context.Context, client string, kind fl.Op) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{client: client, kind: kind}
	if _, ok := m.entries[k]; !ok {
		return false, nil
	}
	delete(m.entries, k)

	return true, nil
}
