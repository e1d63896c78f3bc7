package fl

import "testing"

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		bucket  string
		key     string
		wantErr bool
	}{
		{
			name:    "nested key",
			locator: "s3://models/a/b/c",
			bucket:  "models",
			key:     "a/b/c",
		},
		{
			name:    "single key segment",
			locator: "oci://registry.local/params.bin",
			bucket:  "registry.local",
			key:     "params.bin",
		},
		{
			name:    "no key segments",
			locator: "s3://models",
			wantErr: true,
		},
		{
			name:    "empty key",
			locator: "s3://models/",
			wantErr: true,
		},
		{
			name:    "missing scheme",
			locator: "models/a/b",
			wantErr: true,
		},
		{
			name:    "empty",
			locator: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocator(tt.locator)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.locator, loc)
				}

				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc.Bucket != tt.bucket {
				t.Errorf("bucket: expected %q, got %q", tt.bucket, loc.Bucket)
			}
			if loc.Key != tt.key {
				t.Errorf("key: expected %q, got %q", tt.key, loc.Key)
			}
		})
	}
}

func TestLocatorRoundTrip(t *testing.T) {
	loc := Locator{Scheme: "s3", Bucket: "models", Key: "parameters/get/client1/p.bin"}
	parsed, err := ParseLocator(loc.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != loc {
		t.Errorf("expected %+v, got %+v", loc, parsed)
	}
}

func TestCommandTopics(t *testing.T) {
	if got := CommandTopic("client1"); got != "commands/client/client1/update" {
		t.Errorf("unexpected command topic: %s", got)
	}
	if got := ResultTopic(OpFit, "client1"); got != "fit/client/client1/sent" {
		t.Errorf("unexpected result topic: %s", got)
	}
	if got := ResultTopicFilter(OpGet); got != "parameters/client/+/sent" {
		t.Errorf("unexpected result topic filter: %s", got)
	}
}

func TestOpFromResultTopic(t *testing.T) {
	tests := []struct {
		topic       string
		kind        Op
		participant string
		wantErr     bool
	}{
		{topic: "parameters/client/c1/sent", kind: OpGet, participant: "c1"},
		{topic: "set/client/c2/sent", kind: OpSet, participant: "c2"},
		{topic: "fit/client/c3/sent", kind: OpFit, participant: "c3"},
		{topic: "evaluate/client/c4/sent", kind: OpEvaluate, participant: "c4"},
		{topic: "commands/client/c1/update", wantErr: true},
		{topic: "fit/client/c1", wantErr: true},
	}

	for _, tt := range tests {
		kind, participant, err := OpFromResultTopic(tt.topic)
		if tt.wantErr {
			if err == nil {
				t.Errorf("expected error for %q", tt.topic)
			}

			continue
		}
		if err != nil {
			t.Errorf("unexpected error for %q: %v", tt.topic, err)

			continue
		}
		if kind != tt.kind || participant != tt.participant {
			t.Errorf("topic %q: expected (%s, %s), got (%s, %s)", tt.topic, tt.kind, tt.participant, kind, participant)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{
			name: "valid get",
			cmd:  Command{Method: "get_parameters", Bucket: "b", Prefix: "p"},
		},
		{
			name: "valid fit",
			cmd: Command{
				Method: "fit", Bucket: "b", Prefix: "p",
				OutBucket: "b", OutPrefix: "out",
			},
		},
		{
			name:    "fit without out destination",
			cmd:     Command{Method: "fit", Bucket: "b", Prefix: "p"},
			wantErr: true,
		},
		{
			name:    "unknown method",
			cmd:     Command{Method: "train", Bucket: "b", Prefix: "p"},
			wantErr: true,
		},
		{
			name:    "missing bucket",
			cmd:     Command{Method: "evaluate", Prefix: "p"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpFromMethod(t *testing.T) {
	for _, op := range []Op{OpGet, OpSet, OpFit, OpEvaluate} {
		got, err := OpFromMethod(op.Method())
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", op, err)
		}
		if got != op {
			t.Errorf("expected %s, got %s", op, got)
		}
	}

	if _, err := OpFromMethod("bogus"); err == nil {
		t.Error("expected error for unknown method")
	}
}
