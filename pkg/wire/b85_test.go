package wire

import (
	"bytes"
	"testing"
)

func TestBase85RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "one byte", data: []byte{0x00}},
		{name: "one byte max", data: []byte{0xFF}},
		{name: "two bytes", data: []byte{0xDE, 0xAD}},
		{name: "three bytes", data: []byte{0xDE, 0xAD, 0xBE}},
		{name: "four bytes", data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{name: "five bytes", data: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}},
		{name: "all zero group", data: []byte{0, 0, 0, 0}},
		{name: "max group", data: []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{name: "text", data: []byte("hello, weft")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := EncodeBase85(tt.data)
			dec, err := DecodeBase85(enc)
			if err != nil {
				t.Fatalf("DecodeBase85(%q) error: %v", enc, err)
			}
			if !bytes.Equal(dec, tt.data) {
				t.Errorf("round trip = %x, want %x", dec, tt.data)
			}
		})
	}
}

func TestBase85Lengths(t *testing.T) {
	// n bytes encode to ceil-style lengths: full groups of 4 -> 5 chars,
	// trailing n bytes -> n+1 chars.
	for n, want := range map[int]int{0: 0, 1: 2, 2: 3, 3: 4, 4: 5, 5: 7, 8: 10} {
		got := len(EncodeBase85(make([]byte, n)))
		if got != want {
			t.Errorf("len(encode %d bytes) = %d, want %d", n, got, want)
		}
	}
}

func TestDecodeBase85Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "invalid character", text: "ab cd"},
		{name: "impossible length", text: "abcdef"},
		{name: "overflow full group", text: "~~~~~"},
		{name: "overflow trailing group", text: "~~"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeBase85(tt.text); err == nil {
				t.Errorf("DecodeBase85(%q) should fail", tt.text)
			}
		})
	}
}
