package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/edgefleet/flotilla/pkg/fl"
)

func TestMemoryMailboxPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMailbox()

	entry := Entry{
		Client:   "client1",
		Kind:     fl.OpFit,
		Path:     "local://models/parameters/get/client1/fit.bin",
		TrainLen: "42",
		Dict:     map[string]string{},
	}

	if err := m.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := m.Get(ctx, "client1", fl.OpFit)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if got.Path != entry.Path || got.TrainLen != "42" {
		t.Errorf("unexpected entry: %+v", got)
	}

	deleted, err := m.Delete(ctx, "client1", fl.OpFit)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected delete to report a removed row")
	}

	// Consumed exactly once: a second poll sees nothing and a second delete
	// does not win.
	if _, found, _ := m.Get(ctx, "client1", fl.OpFit); found {
		t.Error("expected entry to be gone after consume")
	}
	if deleted, _ := m.Delete(ctx, "client1", fl.OpFit); deleted {
		t.Error("expected second delete to lose")
	}
}

func TestMemoryMailboxKeyIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMailbox()

	if err := m.Put(ctx, Entry{Client: "client1", Kind: fl.OpGet, Path: "local://b/k"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, found, _ := m.Get(ctx, "client1", fl.OpFit); found {
		t.Error("entry leaked across operation kinds")
	}
	if _, found, _ := m.Get(ctx, "client2", fl.OpGet); found {
		t.Error("entry leaked across participants")
	}
}

func TestMemoryMailboxDuplicatePut(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMailbox()

	entry := Entry{Client: "client1", Kind: fl.OpSet}
	if err := m.Put(ctx, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	err := m.Put(ctx, entry)
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestEntryValidate(t *testing.T) {
	if err := (Entry{Kind: fl.OpGet}).Validate(); !errors.Is(err, ErrInvalidEntry) {
		t.Error("expected validation error for missing client")
	}
	if err := (Entry{Client: "c"}).Validate(); !errors.Is(err, ErrInvalidEntry) {
		t.Error("expected validation error for missing kind")
	}
	if err := (Entry{Client: "c", Kind: fl.OpEvaluate}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
