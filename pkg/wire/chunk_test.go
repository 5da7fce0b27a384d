package wire

import (
	"testing"

	"github.com/matzehuels/weft/pkg/errors"
)

func TestMarshalChunk(t *testing.T) {
	c := &Chunk{Channel: 1, Status: StatusFulfilled, Payload: []byte(`["hi"]`)}
	got, err := MarshalChunk(c)
	if err != nil {
		t.Fatalf("MarshalChunk error: %v", err)
	}
	want := `[1,0,"[\"hi\"]"]`
	if string(got) != want {
		t.Errorf("MarshalChunk = %s, want %s", got, want)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
	}{
		{name: "fulfilled", chunk: Chunk{Channel: 1, Status: StatusFulfilled, Payload: []byte(`["hi"]`)}},
		{name: "sequence return", chunk: Chunk{Channel: 7, Status: StatusReturn, Payload: []byte(`-1`)}},
		{name: "error with nested table", chunk: Chunk{Channel: 2, Status: StatusError, Payload: []byte(`[["Error",1],"boom"]`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := MarshalChunk(&tt.chunk)
			if err != nil {
				t.Fatalf("MarshalChunk error: %v", err)
			}
			got, err := ParseChunk(line)
			if err != nil {
				t.Fatalf("ParseChunk error: %v", err)
			}
			if got.Channel != tt.chunk.Channel || got.Status != tt.chunk.Status || string(got.Payload) != string(tt.chunk.Payload) {
				t.Errorf("round trip = %+v, want %+v", got, tt.chunk)
			}
		})
	}
}

func TestParseChunkRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "not an array", line: `"x"`},
		{name: "wrong arity", line: `[1,0]`},
		{name: "channel zero", line: `[0,0,"-1"]`},
		{name: "negative channel", line: `[-1,0,"-1"]`},
		{name: "status out of range", line: `[1,3,"-1"]`},
		{name: "payload not a string", line: `[1,0,["hi"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseChunk([]byte(tt.line)); !errors.Is(err, errors.ErrCodeMalformedTable) {
				t.Errorf("ParseChunk(%q) error = %v, want MALFORMED_TABLE", tt.line, err)
			}
		})
	}
}

func TestMarshalChunkRejectsInvalid(t *testing.T) {
	if _, err := MarshalChunk(&Chunk{Channel: 0, Status: StatusYield}); err == nil {
		t.Error("channel 0 should be rejected")
	}
	if _, err := MarshalChunk(&Chunk{Channel: 1, Status: 5}); err == nil {
		t.Error("status 5 should be rejected")
	}
}
