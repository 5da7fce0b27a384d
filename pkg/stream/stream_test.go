package stream

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/errors"
)

func encodeToLines(t *testing.T, v any) []string {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(context.Background(), &buf, v, nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestEncodeHeadFirst(t *testing.T) {
	single, resolve, _ := NewSingle()
	resolve("hi")

	lines := encodeToLines(t, map[string]any{"msg": single})
	if len(lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(lines))
	}
	if lines[0] != `[{"msg":1},["PendingSingle",1]]` {
		t.Errorf("head = %s", lines[0])
	}
	if lines[1] != `[1,0,"[\"hi\"]"]` {
		t.Errorf("chunk = %s", lines[1])
	}
}

func TestEncodeReadinessOrder(t *testing.T) {
	slow := Go(func() (any, error) {
		time.Sleep(100 * time.Millisecond)
		return "slow", nil
	})
	fast := Go(func() (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "fast", nil
	})

	// Sorted record keys make channel assignment deterministic: a=1, b=2.
	lines := encodeToLines(t, map[string]any{"a": slow, "b": fast})
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[1], "[2,") {
		t.Errorf("first chunk = %s, want channel 2 (the fast one)", lines[1])
	}
	if !strings.HasPrefix(lines[2], "[1,") {
		t.Errorf("second chunk = %s, want channel 1", lines[2])
	}
}

func TestEncodeSharedSingleOneChannel(t *testing.T) {
	single, resolve, _ := NewSingle()
	resolve(1)

	lines := encodeToLines(t, []any{single, single})
	// One part, referenced twice, settled by one chunk.
	if len(lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(lines))
	}
	if lines[0] != `[[1,1],["PendingSingle",1]]` {
		t.Errorf("head = %s", lines[0])
	}
}

func TestRoundTripStream(t *testing.T) {
	ctx := context.Background()

	seq := NewSequence(func(ctx context.Context, yield func(any) error) (any, error) {
		if err := yield(1); err != nil {
			return nil, err
		}
		if err := yield(2); err != nil {
			return nil, err
		}
		return "done", nil
	})
	in := map[string]any{
		"greeting": Go(func() (any, error) { return "hello", nil }),
		"failing":  Go(func() (any, error) { return nil, fmt.Errorf("nope") }),
		"numbers":  seq,
	}

	var buf bytes.Buffer
	if err := Encode(ctx, &buf, in, nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out, err := Decode(ctx, bytes.NewReader(buf.Bytes()), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	m := out.(map[string]any)

	v, err := m["greeting"].(*Single).Await(ctx)
	if err != nil || v != "hello" {
		t.Errorf("greeting = %v, %v", v, err)
	}

	_, err = m["failing"].(*Single).Await(ctx)
	re, ok := err.(*codec.RemoteError)
	if !ok || re.Message != "nope" {
		t.Errorf("failing = %v, want remote error nope", err)
	}

	s := m["numbers"].(*Sequence)
	var got []any
	for {
		v, more, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !more {
			break
		}
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != int64(1) || got[1] != int64(2) {
		t.Errorf("yields = %v", got)
	}
	if ret := s.Return(); ret != "done" {
		t.Errorf("return = %v, want done", ret)
	}
}

func TestRoundTripNestedChannels(t *testing.T) {
	ctx := context.Background()

	inner := Go(func() (any, error) { return "inner", nil })
	outer := Go(func() (any, error) {
		return map[string]any{"inner": inner}, nil
	})

	var buf bytes.Buffer
	if err := Encode(ctx, &buf, []any{outer}, nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	out, err := Decode(ctx, bytes.NewReader(buf.Bytes()), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	v, err := out.([]any)[0].(*Single).Await(ctx)
	if err != nil {
		t.Fatalf("outer Await() error = %v", err)
	}
	iv, err := v.(map[string]any)["inner"].(*Single).Await(ctx)
	if err != nil || iv != "inner" {
		t.Errorf("inner = %v, %v", iv, err)
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	ctx := context.Background()

	// Head introduces channel 1 but the stream ends before its chunk.
	head := `[{"msg":1},["PendingSingle",1]]` + "\n"
	out, err := Decode(ctx, strings.NewReader(head), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	single := out.(map[string]any)["msg"].(*Single)
	_, err = single.Await(ctx)
	if !errors.Is(err, errors.ErrCodeStreamInterrupted) {
		t.Errorf("code = %v, want STREAM_INTERRUPTED", errors.GetCode(err))
	}
}

func TestDecodeTruncatedSequence(t *testing.T) {
	ctx := context.Background()

	input := `[{"seq":1},["PendingSequence",1]]` + "\n" +
		`[1,0,"[\"first\"]"]` + "\n"
	out, err := Decode(ctx, strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	s := out.(map[string]any)["seq"].(*Sequence)

	v, more, err := s.Next(ctx)
	if err != nil || !more || v != "first" {
		t.Fatalf("Next() = %v, %v, %v", v, more, err)
	}
	_, _, err = s.Next(ctx)
	if !errors.Is(err, errors.ErrCodeStreamInterrupted) {
		t.Errorf("code = %v, want STREAM_INTERRUPTED", errors.GetCode(err))
	}
}

func TestDecodeInvalidSingleStatusInterrupts(t *testing.T) {
	ctx := context.Background()

	// Status 2 is wire-valid but only sequences may carry it. The pump fails
	// on the bad chunk; the unsettled single must be interrupted, not left
	// hanging.
	input := `[{"p":1},["PendingSingle",1]]` + "\n" +
		`[1,2,"[\"x\"]"]` + "\n"
	out, err := Decode(ctx, strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	single := out.(map[string]any)["p"].(*Single)
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := single.Await(waitCtx); !errors.Is(err, errors.ErrCodeStreamInterrupted) {
		t.Errorf("code = %v, want STREAM_INTERRUPTED", errors.GetCode(err))
	}
}

func TestDecodeChannelKindConflict(t *testing.T) {
	input := `[[1,2],["PendingSingle",1],["PendingSequence",1]]` + "\n"
	_, err := Decode(context.Background(), strings.NewReader(input), nil)
	if !errors.Is(err, errors.ErrCodeMalformedTable) {
		t.Errorf("code = %v, want MALFORMED_TABLE", errors.GetCode(err))
	}
}

func TestDecodePlainDocumentNoPump(t *testing.T) {
	out, err := Decode(context.Background(), strings.NewReader(`["hi"]`+"\n"), nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out != "hi" {
		t.Errorf("value = %v, want hi", out)
	}
}

func TestEncodeCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	stuck, _, _ := NewSingle()
	var buf bytes.Buffer
	err := Encode(ctx, &buf, []any{stuck}, nil)
	if err != context.DeadlineExceeded {
		t.Errorf("Encode() error = %v, want deadline exceeded", err)
	}
	// The head must still have been written before the wait.
	if !strings.HasPrefix(buf.String(), `[[1],["PendingSingle",1]]`) {
		t.Errorf("head = %q", buf.String())
	}
}

func TestAwaitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	single, _, _ := NewSingle()
	if _, err := single.Await(ctx); err != context.Canceled {
		t.Errorf("Await() error = %v, want canceled", err)
	}
}

func TestEncodeUnsupportedChunkValueFailsSession(t *testing.T) {
	bad := Go(func() (any, error) { return func() {}, nil })
	var buf bytes.Buffer
	err := Encode(context.Background(), &buf, []any{bad}, nil)
	if !errors.Is(err, errors.ErrCodeUnsupportedValue) {
		t.Errorf("code = %v, want UNSUPPORTED_VALUE", errors.GetCode(err))
	}
}

func TestCoerceError(t *testing.T) {
	failing := Go(func() (any, error) { return nil, fmt.Errorf("secret detail") })
	opts := &EncodeOptions{
		CoerceError: func(error) any { return map[string]any{"message": "internal error"} },
	}

	var buf bytes.Buffer
	if err := Encode(context.Background(), &buf, []any{failing}, opts); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Contains(buf.String(), "secret detail") {
		t.Error("coerced error leaked the original message")
	}
	if !strings.Contains(buf.String(), "internal error") {
		t.Error("coerced replacement missing from stream")
	}
}
