package wire

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/weft/pkg/errors"
)

// Status codes carried by chunk lines. Single-value channels use the
// fulfilled/rejected pair; sequence channels use yield/error/return. The
// numeric assignments are part of the wire contract: ids start at 1 and the
// sequence order is yield=0, error=1, return=2.
const (
	StatusFulfilled = 0
	StatusRejected  = 1

	StatusYield  = 0
	StatusError  = 1
	StatusReturn = 2
)

// Chunk is one out-of-band line of an async stream: the channel it belongs
// to, a status code, and a payload holding a complete wire line (itself a
// Table, possibly referencing further channels).
type Chunk struct {
	Channel int64
	Status  int
	Payload []byte
}

// MarshalChunk serializes a chunk to its wire line: a JSON array
// [channelId, status, payload] with the payload embedded as a JSON string.
func MarshalChunk(c *Chunk) ([]byte, error) {
	if c.Channel < 1 {
		return nil, errors.New(errors.ErrCodeInternal, "channel id %d out of range", c.Channel)
	}
	if c.Status < StatusYield || c.Status > StatusReturn {
		return nil, errors.New(errors.ErrCodeInternal, "status %d out of range", c.Status)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	if err := writeLiteral(&buf, c.Channel); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeLiteral(&buf, int64(c.Status)); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeLiteral(&buf, string(c.Payload)); err != nil {
		return nil, err
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// ParseChunk parses one post-head line of an async stream.
func ParseChunk(line []byte) (*Chunk, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New(errors.ErrCodeMalformedTable, "chunk line is not an array")
	}

	var rawElems []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawElems); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid chunk line")
	}
	if len(rawElems) != 3 {
		return nil, errors.New(errors.ErrCodeMalformedTable, "chunk line has %d elements, want 3", len(rawElems))
	}

	channel, err := parseChunkInt(rawElems[0])
	if err != nil || channel < 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable, "invalid channel id %s", rawElems[0])
	}
	status, err := parseChunkInt(rawElems[1])
	if err != nil || status < StatusYield || status > StatusReturn {
		return nil, errors.New(errors.ErrCodeMalformedTable, "invalid status %s", rawElems[1])
	}
	var payload string
	if err := json.Unmarshal(rawElems[2], &payload); err != nil {
		return nil, errors.New(errors.ErrCodeMalformedTable, "chunk payload is not a string")
	}

	return &Chunk{Channel: channel, Status: int(status), Payload: []byte(payload)}, nil
}

func parseChunkInt(raw json.RawMessage) (int64, error) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, err
	}
	return num.Int64()
}
