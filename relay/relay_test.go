package relay

import (
	"context"
	"log/slog"
	"testing"

	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mailbox"
	"github.com/edgefleet/flotilla/pkg/mqtt"
)

type fakePubSub struct {
	subscribed map[string]mqtt.Handler
}

func (f *fakePubSub) Publish(ctx context.Context, topic string, msg any) error {
	return nil
}

func (f *fakePubSub) Subscribe(ctx context.Context, topic string, handler mqtt.Handler) error {
	if f.subscribed == nil {
		f.subscribed = make(map[string]mqtt.Handler)
	}
	f.subscribed[topic] = handler

	return nil
}

func (f *fakePubSub) Unsubscribe(ctx context.Context, topic string) error {
	return nil
}

func (f *fakePubSub) Disconnect(ctx context.Context) error {
	return nil
}

func newTestService(t *testing.T) (*Service, *mailbox.MemoryMailbox) {
	t.Helper()

	mbox := mailbox.NewMemoryMailbox()
	svc, err := NewService(&fakePubSub{}, mbox, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	return svc, mbox
}

func TestHandleDepositsFitResult(t *testing.T) {
	svc, mbox := newTestService(t)

	msg := map[string]interface{}{
		"client":    "client1",
		"path":      "local://models/parameters/get/client1/out.bin",
		"train_len": float64(42),
		"dict":      map[string]interface{}{"loss": 0.25},
	}
	if err := svc.handle("fit/client/client1/sent", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, found, err := mbox.Get(context.Background(), "client1", fl.OpFit)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("entry not deposited")
	}
	if entry.Path != "local://models/parameters/get/client1/out.bin" {
		t.Errorf("unexpected path: %s", entry.Path)
	}
	if entry.TrainLen != "42" {
		t.Errorf("train_len must travel as a string, got %q", entry.TrainLen)
	}
	if entry.Dict["loss"] != "0.25" {
		t.Errorf("unexpected dict: %v", entry.Dict)
	}
}

func TestHandleDepositsEvaluateResult(t *testing.T) {
	svc, mbox := newTestService(t)

	msg := map[string]interface{}{
		"client":    "client1",
		"loss":      0.5,
		"train_len": float64(100),
		"accuracy":  map[string]interface{}{"accuracy": 0.83},
	}
	if err := svc.handle("evaluate/client/client1/sent", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, found, err := mbox.Get(context.Background(), "client1", fl.OpEvaluate)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("entry not deposited")
	}
	if entry.Loss != "0.5" {
		t.Errorf("loss must travel as a string, got %q", entry.Loss)
	}
	if entry.Accuracy["accuracy"] != "0.83" {
		t.Errorf("unexpected accuracy: %v", entry.Accuracy)
	}
}

func TestHandleFillsParticipantFromTopic(t *testing.T) {
	svc, mbox := newTestService(t)

	msg := map[string]interface{}{}
	if err := svc.handle("set/client/client2/sent", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, found, _ := mbox.Get(context.Background(), "client2", fl.OpSet); !found {
		t.Fatal("entry not deposited under topic participant")
	}
}

func TestHandleReplacesUnclaimedEntry(t *testing.T) {
	svc, mbox := newTestService(t)

	first := map[string]interface{}{"client": "client1", "path": "local://models/a"}
	second := map[string]interface{}{"client": "client1", "path": "local://models/b"}
	if err := svc.handle("parameters/client/client1/sent", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.handle("parameters/client/client1/sent", second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, found, err := mbox.Get(context.Background(), "client1", fl.OpGet)
	if err != nil || !found {
		t.Fatalf("entry missing: found=%v err=%v", found, err)
	}
	if entry.Path != "local://models/b" {
		t.Errorf("last write must win, got %s", entry.Path)
	}
}

func TestHandleRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		msg   map[string]interface{}
	}{
		{
			name:  "unrecognized topic",
			topic: "telemetry/client/client1/sent",
			msg:   map[string]interface{}{"client": "client1"},
		},
		{
			name:  "fit result without path",
			topic: "fit/client/client1/sent",
			msg:   map[string]interface{}{"client": "client1", "train_len": float64(1)},
		},
		{
			name:  "non-numeric train_len",
			topic: "fit/client/client1/sent",
			msg:   map[string]interface{}{"client": "client1", "path": "local://m/k", "train_len": "many"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mbox := newTestService(t)
			if err := svc.handle(tt.topic, tt.msg); err == nil {
				t.Fatal("expected error")
			}
			if _, found, _ := mbox.Get(context.Background(), "client1", fl.OpFit); found {
				t.Error("rejected message must not be deposited")
			}
		})
	}
}

func TestRunSubscribesAllKinds(t *testing.T) {
	pubsub := &fakePubSub{}
	svc, err := NewService(pubsub, mailbox.NewMemoryMailbox(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); err != context.Canceled {
		t.Fatalf("expected Canceled, got %v", err)
	}

	want := []string{
		"parameters/client/+/sent",
		"set/client/+/sent",
		"fit/client/+/sent",
		"evaluate/client/+/sent",
	}
	for _, topic := range want {
		if _, ok := pubsub.subscribed[topic]; !ok {
			t.Errorf("missing subscription for %s", topic)
		}
	}
}
