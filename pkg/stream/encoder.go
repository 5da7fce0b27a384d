package stream

import (
	"context"
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

// EncodeOptions configures one encoding session.
type EncodeOptions struct {
	// Reducers extend the codec's type catalog, as in codec.Options.
	Reducers []codec.Reducer

	// CoerceError maps a rejection or sequence error to the value encoded
	// on the wire. When nil the error itself is encoded, which the codec
	// serializes as an Error tag carrying the message.
	CoerceError func(err error) any

	// Logger receives per-channel debug events. Nil discards them.
	Logger *log.Logger
}

// Encode writes v and all of its pending values to w as a line-oriented
// stream. The head line is written before Encode waits on anything; chunk
// lines follow in readiness order. Encode returns once every channel has
// reached its terminal chunk, the context is cancelled, or a write fails.
func Encode(ctx context.Context, w io.Writer, v any, opts *EncodeOptions) error {
	if opts == nil {
		opts = &EncodeOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &encodeSession{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		id:     uuid.NewString(),
		logger: logger,
		nextID: 1,
		lines:  make(chan []byte),
	}
	s.codecOpts = &codec.Options{
		Reducers:      opts.Reducers,
		PendingReduce: s.reduce,
	}

	start := time.Now()
	err := s.run(w, v)
	observability.Stream().OnSessionEnd(ctx, s.id, time.Since(start), err)
	return err
}

type encodeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      *EncodeOptions
	codecOpts *codec.Options
	id        string
	logger    *log.Logger

	mu      sync.Mutex
	nextID  int64
	failure error

	wg    sync.WaitGroup
	lines chan []byte
}

func (s *encodeSession) run(w io.Writer, v any) error {
	// Flattening the head registers every top-level channel and starts its
	// source goroutine. The goroutines block on the lines channel until the
	// writer loop below is draining it.
	head, err := codec.Flatten(v, s.codecOpts)
	if err != nil {
		s.fail(err)
		return s.finish()
	}
	headLine, err := wire.MarshalLine(head)
	if err != nil {
		s.fail(err)
		return s.finish()
	}
	if err := writeLine(w, headLine); err != nil {
		s.fail(errors.Wrap(errors.ErrCodeStreamInterrupted, err, "write head"))
		return s.finish()
	}

	go func() {
		s.wg.Wait()
		close(s.lines)
	}()

	for line := range s.lines {
		if err := writeLine(w, line); err != nil {
			s.fail(errors.Wrap(errors.ErrCodeStreamInterrupted, err, "write chunk"))
		}
	}
	return s.finish()
}

func (s *encodeSession) finish() error {
	ctxErr := s.ctx.Err()
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	return ctxErr
}

// fail records the first fatal error and stops the session.
func (s *encodeSession) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	s.cancel()
}

func writeLine(w io.Writer, line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

// reduce is the codec's pending-value hook. The codec deduplicates by
// identity before calling it, so every distinct source gets exactly one
// channel id.
func (s *encodeSession) reduce(v any) (string, int64, bool) {
	var tag, kind string
	switch v.(type) {
	case *Single:
		tag, kind = codec.TagPendingSingle, "single"
	case *Sequence:
		tag, kind = codec.TagPendingSequence, "sequence"
	default:
		return "", 0, false
	}

	s.mu.Lock()
	ch := s.nextID
	s.nextID++
	s.mu.Unlock()

	s.logger.Debug("channel opened", "session", s.id, "channel", ch, "kind", kind)
	observability.Stream().OnChannelOpen(s.ctx, s.id, ch, kind)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		switch src := v.(type) {
		case *Single:
			s.runSingle(ch, src)
		case *Sequence:
			s.runSequence(ch, src)
		}
		s.logger.Debug("channel closed", "session", s.id, "channel", ch)
		observability.Stream().OnChannelClose(s.ctx, s.id, ch)
	}()
	return tag, ch, true
}

func (s *encodeSession) runSingle(ch int64, src *Single) {
	v, err := src.Await(s.ctx)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.emit(ch, wire.StatusRejected, s.errorValue(err))
		return
	}
	s.emit(ch, wire.StatusFulfilled, v)
}

func (s *encodeSession) runSequence(ch int64, src *Sequence) {
	if src.fn == nil {
		s.proxySequence(ch, src)
		return
	}

	yield := func(v any) error {
		return s.emit(ch, wire.StatusYield, v)
	}
	ret, err := src.fn(s.ctx, yield)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.emit(ch, wire.StatusError, s.errorValue(err))
		return
	}
	s.emit(ch, wire.StatusReturn, ret)
}

// proxySequence re-multiplexes a consumer-side sequence, forwarding each
// element as it arrives.
func (s *encodeSession) proxySequence(ch int64, src *Sequence) {
	for {
		v, more, err := src.Next(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			s.emit(ch, wire.StatusError, s.errorValue(err))
			return
		case !more:
			s.emit(ch, wire.StatusReturn, src.Return())
			return
		default:
			if s.emit(ch, wire.StatusYield, v) != nil {
				return
			}
		}
	}
}

func (s *encodeSession) errorValue(err error) any {
	if s.opts.CoerceError != nil {
		return s.opts.CoerceError(err)
	}
	return err
}

// emit flattens v, wraps it in a chunk line for ch, and hands it to the
// writer. Flatten failures are fatal for the whole session since the peer
// would otherwise wait forever.
func (s *encodeSession) emit(ch int64, status int, v any) error {
	table, err := codec.Flatten(v, s.codecOpts)
	if err != nil {
		s.fail(err)
		return err
	}
	payload, err := wire.MarshalLine(table)
	if err != nil {
		s.fail(err)
		return err
	}
	line, err := wire.MarshalChunk(&wire.Chunk{Channel: ch, Status: status, Payload: payload})
	if err != nil {
		s.fail(err)
		return err
	}

	select {
	case s.lines <- line:
		observability.Stream().OnChunk(s.ctx, s.id, ch, status, len(line))
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
