package flotilla

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	content := `
[broker]
url = "tcp://localhost:1883"
qos = 1
timeout = "15s"

[store]
backend = "local"
root = "/tmp/blobs"
bucket = "models"

[mailbox]
backend = "memory"

[coordinator]
http_addr = ":8080"
participants = ["client1", "client2"]
poll_interval = "5s"

[edge]
participant = "client1"
heartbeat_interval = "10s"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Broker.URL != "tcp://localhost:1883" || cfg.Broker.QoS != 1 {
		t.Errorf("unexpected broker config: %+v", cfg.Broker)
	}
	if cfg.Store.Backend != "local" || cfg.Store.Root != "/tmp/blobs" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Mailbox.Backend != "memory" {
		t.Errorf("unexpected mailbox config: %+v", cfg.Mailbox)
	}
	if len(cfg.Coordinator.Participants) != 2 || cfg.Coordinator.Participants[0] != "client1" {
		t.Errorf("unexpected participants: %v", cfg.Coordinator.Participants)
	}
	if cfg.Edge.Participant != "client1" {
		t.Errorf("unexpected edge config: %+v", cfg.Edge)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[broker\nurl = "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed file")
	}
}

func TestNewStoreAndMailboxSelection(t *testing.T) {
	store, err := NewStore(StoreConfig{Backend: "local", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Scheme() != "local" {
		t.Errorf("unexpected scheme: %s", store.Scheme())
	}

	if _, err := NewStore(StoreConfig{Backend: "ftp"}); err == nil {
		t.Fatal("expected error for unknown store backend")
	}

	if _, err := NewMailbox(MailboxConfig{Backend: "memory"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewMailbox(MailboxConfig{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown mailbox backend")
	}
}
