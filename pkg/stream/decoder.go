package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/errors"
	"github.com/matzehuels/weft/pkg/observability"
	"github.com/matzehuels/weft/pkg/wire"
)

// maxLineBytes bounds a single wire line. Lines are whole documents, so the
// limit is generous.
const maxLineBytes = 64 * 1024 * 1024

// DecodeOptions configures one decoding session.
type DecodeOptions struct {
	// Revivers extend the codec's type catalog, as in codec.Options.
	Revivers []codec.Reviver

	// Logger receives per-channel debug events. Nil discards them.
	Logger *log.Logger
}

// Decode reads the head line from r and returns its value immediately.
// Pending placeholders decode to consumer-side [Single] and [Sequence]
// values; if the head mentioned any, a background goroutine keeps reading
// chunk lines and settling them until the stream ends. A stream that ends
// with channels still open fails those channels with STREAM_INTERRUPTED.
func Decode(ctx context.Context, r io.Reader, opts *DecodeOptions) (any, error) {
	if opts == nil {
		opts = &DecodeOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStreamInterrupted, err, "read head")
		}
		return nil, errors.New(errors.ErrCodeStreamInterrupted, "stream ended before head line")
	}
	head, err := wire.ParseLine(scanner.Bytes())
	if err != nil {
		return nil, err
	}

	s := &decodeSession{
		id:     uuid.NewString(),
		logger: logger,
		chans:  make(map[int64]*remoteChannel),
		stash:  make(map[int64][]*wire.Chunk),
	}
	s.codecOpts = &codec.Options{
		Revivers:      opts.Revivers,
		PendingRevive: s.revive,
	}

	v, err := codec.Unflatten(head, s.codecOpts)
	if err != nil {
		return nil, err
	}

	if len(s.chans) > 0 {
		go s.pump(ctx, scanner)
	}
	return v, nil
}

type remoteChannel struct {
	kind    string
	single  *Single
	resolve func(any)
	reject  func(error)
	seq     *Sequence
	closed  bool
}

type decodeSession struct {
	id        string
	logger    *log.Logger
	codecOpts *codec.Options

	mu    sync.Mutex
	chans map[int64]*remoteChannel
	stash map[int64][]*wire.Chunk
}

// revive is the codec's placeholder hook. A channel id referenced twice
// maps to one consumer value.
func (s *decodeSession) revive(tag string, channel int64) (any, error) {
	if channel < 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable, "invalid channel id %d", channel)
	}

	want := "single"
	if tag == codec.TagPendingSequence {
		want = "sequence"
	}

	s.mu.Lock()
	if rc, ok := s.chans[channel]; ok {
		kind := rc.kind
		s.mu.Unlock()
		if kind != want {
			return nil, errors.New(errors.ErrCodeMalformedTable,
				"channel %d referenced as both %s and %s", channel, kind, want)
		}
		return rc.consumer(), nil
	}

	rc := &remoteChannel{}
	switch tag {
	case codec.TagPendingSingle:
		single, resolve, reject := NewSingle()
		rc.kind = "single"
		rc.single = single
		rc.resolve = resolve
		rc.reject = reject
	case codec.TagPendingSequence:
		rc.kind = "sequence"
		rc.seq = newConsumerSequence()
	default:
		s.mu.Unlock()
		return nil, errors.New(errors.ErrCodeUnknownTag, "unknown pending tag %q", tag)
	}
	s.chans[channel] = rc
	stashed := s.stash[channel]
	delete(s.stash, channel)
	s.mu.Unlock()

	s.logger.Debug("channel opened", "session", s.id, "channel", channel, "kind", rc.kind)
	observability.Stream().OnChannelOpen(context.Background(), s.id, channel, rc.kind)

	// Chunks that arrived before the channel was introduced.
	for _, c := range stashed {
		if err := s.deliver(channel, rc, c); err != nil {
			return nil, err
		}
	}
	return rc.consumer(), nil
}

func (rc *remoteChannel) consumer() any {
	if rc.seq != nil {
		return rc.seq
	}
	return rc.single
}

// pump reads chunk lines until the stream ends, settling channels as their
// chunks arrive.
func (s *decodeSession) pump(ctx context.Context, scanner *bufio.Scanner) {
	start := time.Now()
	var fatal error

	for scanner.Scan() {
		if ctx.Err() != nil {
			fatal = ctx.Err()
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		chunk, err := wire.ParseChunk(line)
		if err != nil {
			fatal = err
			break
		}

		s.mu.Lock()
		rc, known := s.chans[chunk.Channel]
		if !known {
			s.stash[chunk.Channel] = append(s.stash[chunk.Channel], chunk)
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		if err := s.deliver(chunk.Channel, rc, chunk); err != nil {
			fatal = err
			break
		}
	}
	if fatal == nil {
		fatal = scanner.Err()
	}

	s.shutdown(fatal)
	observability.Stream().OnSessionEnd(ctx, s.id, time.Since(start), fatal)
}

// deliver decodes one chunk's payload and applies it to its channel. The
// payload may itself introduce further channels.
func (s *decodeSession) deliver(channel int64, rc *remoteChannel, chunk *wire.Chunk) error {
	table, err := wire.ParseLine(chunk.Payload)
	if err != nil {
		return err
	}
	v, err := codec.Unflatten(table, s.codecOpts)
	if err != nil {
		return err
	}
	observability.Stream().OnChunk(context.Background(), s.id, channel, chunk.Status, len(chunk.Payload))

	if rc.seq != nil {
		return s.deliverSequence(channel, rc, chunk.Status, v)
	}
	return s.deliverSingle(channel, rc, chunk.Status, v)
}

func (s *decodeSession) deliverSingle(channel int64, rc *remoteChannel, status int, v any) error {
	// Validate before marking the channel closed: a pump failure here must
	// leave the channel open so shutdown still interrupts its consumer.
	if status != wire.StatusFulfilled && status != wire.StatusRejected {
		return errors.New(errors.ErrCodeMalformedTable, "status %d invalid for single channel %d", status, channel)
	}

	s.mu.Lock()
	if rc.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeMalformedTable, "chunk for settled channel %d", channel)
	}
	rc.closed = true
	s.mu.Unlock()

	if status == wire.StatusFulfilled {
		rc.resolve(v)
	} else {
		rc.reject(asError(v))
	}
	s.closeChannel(channel)
	return nil
}

func (s *decodeSession) deliverSequence(channel int64, rc *remoteChannel, status int, v any) error {
	s.mu.Lock()
	if rc.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeMalformedTable, "chunk for settled channel %d", channel)
	}
	terminal := status != wire.StatusYield
	if terminal {
		rc.closed = true
	}
	s.mu.Unlock()

	switch status {
	case wire.StatusYield:
		rc.seq.events.Push(seqEvent{kind: wire.StatusYield, val: v})
	case wire.StatusError:
		rc.seq.events.Push(seqEvent{kind: wire.StatusError, err: asError(v)})
	case wire.StatusReturn:
		rc.seq.events.Push(seqEvent{kind: wire.StatusReturn, val: v})
	}
	if terminal {
		s.closeChannel(channel)
	}
	return nil
}

func (s *decodeSession) closeChannel(channel int64) {
	s.logger.Debug("channel closed", "session", s.id, "channel", channel)
	observability.Stream().OnChannelClose(context.Background(), s.id, channel)
}

// shutdown fails every channel that never reached a terminal chunk.
func (s *decodeSession) shutdown(cause error) {
	s.mu.Lock()
	var open []*remoteChannel
	openCount := 0
	for _, rc := range s.chans {
		if !rc.closed {
			rc.closed = true
			open = append(open, rc)
			openCount++
		}
	}
	s.mu.Unlock()
	if openCount == 0 {
		return
	}

	var err error
	if cause != nil {
		err = errors.Wrap(errors.ErrCodeStreamInterrupted, cause,
			"stream failed with %d channels open", openCount)
	} else {
		err = errors.New(errors.ErrCodeStreamInterrupted,
			"stream ended with %d channels open", openCount)
	}
	for _, rc := range open {
		if rc.seq != nil {
			rc.seq.events.Fail(err)
			continue
		}
		rc.reject(err)
	}
}

// asError adapts a decoded rejection value to the error Await and Next
// report. Error-tagged wire values already arrive as *codec.RemoteError.
func asError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return &codec.RemoteError{Message: fmt.Sprint(v)}
}
