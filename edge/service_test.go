package edge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/edgefleet/flotilla/edge/runtimes"
	"github.com/edgefleet/flotilla/pkg/blob/localfs"
	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mqtt"
	"github.com/edgefleet/flotilla/pkg/params"
)

const testParticipant = "client1"

type published struct {
	topic string
	msg   any
}

type fakePubSub struct {
	mu        sync.Mutex
	published []published
}

func (f *fakePubSub) Publish(ctx context.Context, topic string, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, msg: msg})

	return nil
}

func (f *fakePubSub) Subscribe(ctx context.Context, topic string, handler mqtt.Handler) error {
	return nil
}

func (f *fakePubSub) Unsubscribe(ctx context.Context, topic string) error {
	return nil
}

func (f *fakePubSub) Disconnect(ctx context.Context) error {
	return nil
}

func (f *fakePubSub) lastResult(t *testing.T) (string, fl.Result) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.published) == 0 {
		t.Fatal("nothing published")
	}
	last := f.published[len(f.published)-1]
	res, ok := last.msg.(fl.Result)
	if !ok {
		t.Fatalf("published message is %T, expected fl.Result", last.msg)
	}

	return last.topic, res
}

func newTestService(t *testing.T) (*Service, *fakePubSub, *localfs.Store, *runtimes.Linear) {
	t.Helper()

	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	trainer, err := runtimes.NewLinear([][]float64{{1}, {2}, {3}}, []float64{2, 4, 6}, 0.05, 50)
	if err != nil {
		t.Fatalf("trainer: %v", err)
	}

	svc, err := NewService(testParticipant, &fakePubSub{}, store, trainer, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	pubsub := svc.pubsub.(*fakePubSub)

	return svc, pubsub, store, trainer
}

func stageParams(t *testing.T, store *localfs.Store, bucket, key string, p params.Parameters) {
	t.Helper()

	data, err := params.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.Upload(context.Background(), bucket, key, data); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func loadParams(t *testing.T, store *localfs.Store, bucket, key string) params.Parameters {
	t.Helper()

	data, err := store.Download(context.Background(), bucket, key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	p, err := params.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	return p
}

func command(method string, extra map[string]interface{}) map[string]interface{} {
	msg := map[string]interface{}{
		"method": method,
		"bucket": "models",
		"prefix": "parameters/set/client1/in.bin",
	}
	for k, v := range extra {
		msg[k] = v
	}

	return msg
}

func TestHandleGetParameters(t *testing.T) {
	svc, pubsub, store, _ := newTestService(t)

	if err := svc.handle(fl.CommandTopic(testParticipant), command("get_parameters", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topic, res := pubsub.lastResult(t)
	if topic != "parameters/client/client1/sent" {
		t.Errorf("unexpected result topic: %s", topic)
	}
	if res.Client != testParticipant {
		t.Errorf("unexpected client: %s", res.Client)
	}

	if res.Path != "local://models/parameters/set/client1/in.bin" {
		t.Fatalf("result path must point at the requested prefix, got %q", res.Path)
	}
	loc, err := fl.ParseLocator(res.Path)
	if err != nil {
		t.Fatalf("result path is not a locator: %v", err)
	}
	got := loadParams(t, store, loc.Bucket, loc.Key)
	if len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("unexpected parameter shape: %v", got)
	}
}

func TestHandleSetParameters(t *testing.T) {
	svc, pubsub, store, trainer := newTestService(t)
	want := params.Parameters{{3.25}}
	stageParams(t, store, "models", "parameters/set/client1/in.bin", want)

	if err := svc.handle(fl.CommandTopic(testParticipant), command("set_parameters", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topic, res := pubsub.lastResult(t)
	if topic != "set/client/client1/sent" {
		t.Errorf("unexpected result topic: %s", topic)
	}
	if res.Path != "" {
		t.Errorf("set result must not carry a payload path, got %q", res.Path)
	}

	got, err := trainer.Parameters(context.Background())
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if !params.Equal(want, got) {
		t.Errorf("trainer parameters not updated: expected %v, got %v", want, got)
	}
}

func TestHandleFit(t *testing.T) {
	svc, pubsub, store, _ := newTestService(t)
	stageParams(t, store, "models", "parameters/set/client1/in.bin", params.Parameters{{0}})

	extra := map[string]interface{}{
		"out_bucket": "models",
		"out_prefix": "parameters/get/client1/out.bin",
	}
	if err := svc.handle(fl.CommandTopic(testParticipant), command("fit", extra)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topic, res := pubsub.lastResult(t)
	if topic != "fit/client/client1/sent" {
		t.Errorf("unexpected result topic: %s", topic)
	}
	if res.TrainLen != 3 {
		t.Errorf("expected train_len 3, got %d", res.TrainLen)
	}
	if _, ok := res.Dict["loss"]; !ok {
		t.Errorf("expected loss metric, got %v", res.Dict)
	}
	if res.Path != "local://models/parameters/get/client1/out.bin" {
		t.Errorf("unexpected result path: %s", res.Path)
	}

	trained := loadParams(t, store, "models", "parameters/get/client1/out.bin")
	if trained[0][0] == 0 {
		t.Error("fit did not move the parameters")
	}
}

func TestHandleEvaluate(t *testing.T) {
	svc, pubsub, store, _ := newTestService(t)
	// The exact solution for the dataset y = 2x.
	stageParams(t, store, "models", "parameters/set/client1/in.bin", params.Parameters{{2}})

	if err := svc.handle(fl.CommandTopic(testParticipant), command("evaluate", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topic, res := pubsub.lastResult(t)
	if topic != "evaluate/client/client1/sent" {
		t.Errorf("unexpected result topic: %s", topic)
	}
	if res.Loss != 0 {
		t.Errorf("expected zero loss at the exact solution, got %f", res.Loss)
	}
	if res.TrainLen != 3 {
		t.Errorf("expected 3 samples, got %d", res.TrainLen)
	}
	if res.Accuracy["accuracy"] != 1 {
		t.Errorf("expected accuracy 1, got %v", res.Accuracy)
	}
}

func TestHandleRejectsBadCommands(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	tests := []struct {
		name string
		msg  map[string]interface{}
		want error
	}{
		{
			name: "unknown method",
			msg:  command("train_forever", nil),
			want: ErrUnknownMethod,
		},
		{
			name: "fit without output location",
			msg:  command("fit", nil),
		},
		{
			name: "missing bucket",
			msg:  map[string]interface{}{"method": "get_parameters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.handle(fl.CommandTopic(testParticipant), tt.msg)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
