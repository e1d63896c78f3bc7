package params

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    Parameters
	}{
		{
			name: "two layers",
			p:    Parameters{{0.5, -1.25, 3}, {0}},
		},
		{
			name: "single empty layer",
			p:    Parameters{{}},
		},
		{
			name: "large layer",
			p:    Parameters{make([]float64, 4096)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.p)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			got, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if !Equal(tt.p, got) {
				t.Errorf("round trip mismatch: expected %v, got %v", tt.p, got)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := Decode([]byte{0xff, 0x01, 0x02}); err == nil {
		t.Error("expected error for garbage payload")
	}
}

func TestZeros(t *testing.T) {
	p := Parameters{{1, 2, 3}, {4}}
	z := Zeros(p)

	if len(z) != 2 || len(z[0]) != 3 || len(z[1]) != 1 {
		t.Fatalf("unexpected shape: %v", z)
	}
	for i := range z {
		for j := range z[i] {
			if z[i][j] != 0 {
				t.Errorf("expected zero at [%d][%d], got %f", i, j, z[i][j])
			}
		}
	}
}

func TestEqual(t *testing.T) {
	a := Parameters{{1, 2}, {3}}
	if !Equal(a, Parameters{{1, 2}, {3}}) {
		t.Error("expected equal")
	}
	if Equal(a, Parameters{{1, 2}}) {
		t.Error("expected unequal on layer count")
	}
	if Equal(a, Parameters{{1, 2}, {4}}) {
		t.Error("expected unequal on values")
	}
}
