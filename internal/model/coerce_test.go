package model

import (
	"encoding/json"
	"testing"
)

func TestEncodeTurn(t *testing.T) {
	cases := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{true, 1, false},
		{false, 0, false},
		{1, 1, false},
		{0, 0, false},
		{int64(1), 1, false},
		{float64(0), 0, false},
		{"1", 1, false},
		{"0", 0, false},
		{"true", 1, false},
		{"false", 0, false},
		{"first", 1, false},
		{"second", 0, false},
		{"先攻", 1, false},
		{"後攻", 0, false},
		{" First ", 1, false},
		{json.Number("1"), 1, false},
		// numbers coerce by truthiness
		{2, 1, false},
		{3.14, 1, false},
		{nil, 0, true},
		{"maybe", 0, true},
	}

	for _, tc := range cases {
		got, err := EncodeTurn(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("EncodeTurn(%v): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("EncodeTurn(%v): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("EncodeTurn(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestEncodeResult(t *testing.T) {
	cases := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{1, 1, false},
		{0, 0, false},
		{-1, -1, false},
		{int64(-1), -1, false},
		{"win", 1, false},
		{"lose", -1, false},
		{"draw", 0, false},
		{"勝ち", 1, false},
		{"負け", -1, false},
		{"敗北", -1, false},
		{"引き分け", 0, false},
		{"WIN", 1, false},
		{"-1", -1, false},
		{nil, 0, true},
		{"crushed", 0, true},
		{2, 0, true},
	}

	for _, tc := range cases {
		got, err := EncodeResult(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("EncodeResult(%v): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("EncodeResult(%v): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("EncodeResult(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// Decoding is total: whatever junk is in an old database row comes back
// as a safe default instead of an error.
func TestDecodeTotality(t *testing.T) {
	if got := DecodeTurn("garbage"); got != false {
		t.Errorf("DecodeTurn(garbage) = %v, want false", got)
	}
	if got := DecodeTurn(1); got != true {
		t.Errorf("DecodeTurn(1) = %v, want true", got)
	}
	if got := DecodeTurn("先攻"); got != true {
		t.Errorf("DecodeTurn(先攻) = %v, want true", got)
	}
	if got := DecodeResult(nil); got != 0 {
		t.Errorf("DecodeResult(nil) = %d, want 0", got)
	}
	if got := DecodeResult("負け"); got != -1 {
		t.Errorf("DecodeResult(負け) = %d, want -1", got)
	}
	if got := DecodeResult(int64(1)); got != 1 {
		t.Errorf("DecodeResult(1) = %d, want 1", got)
	}
}

func TestKeywordListRoundTrip(t *testing.T) {
	encoded := EncodeKeywordList([]string{"kw-aabbccddee", "kw-0011223344"})
	decoded := DecodeKeywordList(encoded)
	if len(decoded) != 2 || decoded[0] != "kw-aabbccddee" || decoded[1] != "kw-0011223344" {
		t.Errorf("round trip lost data: %v", decoded)
	}

	if got := EncodeKeywordList(nil); got != "[]" {
		t.Errorf("EncodeKeywordList(nil) = %q, want []", got)
	}
	if got := DecodeKeywordList("not json"); len(got) != 0 {
		t.Errorf("DecodeKeywordList(malformed) = %v, want empty", got)
	}
	if got := DecodeKeywordList(""); len(got) != 0 {
		t.Errorf("DecodeKeywordList(empty) = %v, want empty", got)
	}
}

func TestKeywordIdentifier(t *testing.T) {
	id := NewKeywordIdentifier()
	if !IsKeywordIdentifier(id) {
		t.Errorf("generated identifier %q not recognized", id)
	}
	if IsKeywordIdentifier("Combo Win") {
		t.Error("display name mistaken for identifier")
	}

	// Two generated identifiers colliding would mean the random source is
	// broken.
	if other := NewKeywordIdentifier(); other == id {
		t.Errorf("identifiers collided: %q", id)
	}
}
