package cbor

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"true", true},
		{"false", false},
		{"small uint", uint64(5)},
		{"small int", int64(-5)},
		{"large uint", uint64(1_000_000)},
		{"negative int", int64(-1_000_000)},
		{"float", 3.25},
		{"string", "hello world"},
		{"empty string", ""},
		{"bytes", []byte{0x01, 0x02, 0xFF}},
		{"array", []any{uint64(1), "two", true}},
		{"map", map[string]any{"status": uint64(200), "ok": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode(%v) error: %v", tt.in, err)
			}
			got, err := Decode(enc)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			want := tt.in
			if want == nil {
				if got != nil {
					t.Errorf("Decode() = %v, want nil", got)
				}
				return
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Decode(Encode(%v)) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestDecodeFixedWidthIntegers(t *testing.T) {
	// 24 (0x18) prefix: one-byte uint, value 100.
	got, err := Decode([]byte{0x18, 0x64})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.(uint64) != 100 {
		t.Errorf("Decode() = %v, want 100", got)
	}
}

func TestDecodeIndefiniteLengthText(t *testing.T) {
	// Indefinite text string (0x7F) containing "ab" (0x62 'a' 'b') then break (0xFF).
	data := []byte{0x7F, 0x62, 'a', 'b', 0xFF}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.(string) != "ab" {
		t.Errorf("Decode() = %q, want %q", got, "ab")
	}
}

func TestDecodeIndefiniteLengthArray(t *testing.T) {
	// Indefinite array (0x9F) containing 1, 2, then break.
	data := []byte{0x9F, 0x01, 0x02, 0xFF}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	arr, ok := got.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("Decode() = %v, want 2-element array", got)
	}
}

func TestDecodeHalfFloat(t *testing.T) {
	// Half-float (0xF9) encoding of 1.0: sign=0 exp=01111 frac=0000000000 -> 0x3C00.
	data := []byte{0xF9, 0x3C, 0x00}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.(float64) != 1.0 {
		t.Errorf("Decode() = %v, want 1.0", got)
	}
}

func TestDecodeHalfFloatZero(t *testing.T) {
	data := []byte{0xF9, 0x00, 0x00}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.(float64) != 0.0 {
		t.Errorf("Decode() = %v, want 0.0", got)
	}
}

func TestDecodeTagSkipped(t *testing.T) {
	// Tag 0 (0xC0) wrapping text string "2013-03-21" is not something we
	// exercise for real, but a small tag wrapping a uint must still
	// decode to the inner value.
	data := []byte{0xC0, 0x05}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.(uint64) != 5 {
		t.Errorf("Decode() = %v, want 5", got)
	}
}

func TestDecodeTrailingBytesRejected(t *testing.T) {
	data := []byte{0x05, 0x05}
	if _, err := Decode(data); err == nil {
		t.Errorf("Decode() should reject trailing bytes after the top-level value")
	}
}

func TestDecodeTruncatedRejected(t *testing.T) {
	data := []byte{0x19, 0x01} // uint16 head needs 2 more bytes, only 1 given
	if _, err := Decode(data); err == nil {
		t.Errorf("Decode() should reject truncated input")
	}
}

func TestDecodeEmptyMap(t *testing.T) {
	got, err := Decode([]byte{0xA0})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || len(m) != 0 {
		t.Errorf("Decode() = %v, want empty map", got)
	}
}
