package stream

import (
	"context"
	"sync"

	"github.com/matzehuels/weft/pkg/errors"
	"github.com/matzehuels/weft/pkg/wire"
)

// Single is a value that becomes available exactly once. On the producer
// side it is settled by the resolve/reject pair from [NewSingle] or by the
// function passed to [Go]; on the consumer side it is settled by the
// decoding session when the matching chunk arrives.
type Single struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

// NewSingle creates an unsettled Single together with its resolve and
// reject functions. Only the first settlement takes effect.
func NewSingle() (*Single, func(any), func(error)) {
	s := &Single{done: make(chan struct{})}
	resolve := func(v any) { s.settle(v, nil) }
	reject := func(err error) { s.settle(nil, err) }
	return s, resolve, reject
}

// Go runs fn in its own goroutine and returns a Single settled by its
// result.
func Go(fn func() (any, error)) *Single {
	s, resolve, reject := NewSingle()
	go func() {
		v, err := fn()
		if err != nil {
			reject(err)
			return
		}
		resolve(v)
	}()
	return s
}

func (s *Single) settle(v any, err error) {
	s.once.Do(func() {
		s.val = v
		s.err = err
		close(s.done)
	})
}

// Await blocks until the value is available or ctx is done.
func (s *Single) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return s.val, s.err
	}
}

// Close abandons the value. A later settlement is dropped and Await reports
// STREAM_CLOSED. Other channels of the same session are unaffected.
func (s *Single) Close() {
	s.settle(nil, errors.New(errors.ErrCodeStreamClosed, "single closed by consumer"))
}

// seqEvent is one element of a consumer-side sequence's backlog.
type seqEvent struct {
	kind int // wire.StatusYield, StatusError or StatusReturn
	val  any
	err  error
}

// Sequence is a push sequence: zero or more yielded values followed by a
// terminal return value or error. A producer-side Sequence wraps a
// generator function; a consumer-side Sequence is fed by the decoding
// session.
type Sequence struct {
	fn func(ctx context.Context, yield func(any) error) (any, error)

	events *queue

	mu   sync.Mutex
	done bool
	ret  any
	err  error
}

// NewSequence wraps a generator function for encoding. The function runs in
// its own goroutine once an encoding session reaches the sequence; each
// yield produces one chunk, and the function's results produce the terminal
// chunk. yield returns an error when the session is gone, at which point
// the generator should stop.
func NewSequence(fn func(ctx context.Context, yield func(any) error) (any, error)) *Sequence {
	return &Sequence{fn: fn}
}

func newConsumerSequence() *Sequence {
	return &Sequence{events: newQueue()}
}

// Next blocks for the next element. It returns (value, true, nil) for each
// yielded value, (nil, false, nil) once the sequence finished normally, and
// (nil, false, err) if it finished with an error or the stream was
// interrupted. After the terminal element every call returns the same
// result.
func (s *Sequence) Next(ctx context.Context) (any, bool, error) {
	if s.events == nil {
		return nil, false, errors.New(errors.ErrCodeStreamClosed, "sequence is producer-side")
	}

	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		return nil, false, err
	}
	s.mu.Unlock()

	ev, err := s.events.Pop(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, err
		}
		s.finish(nil, err)
		return nil, false, err
	}

	e := ev.(seqEvent)
	switch {
	case e.err != nil:
		s.finish(nil, e.err)
		return nil, false, e.err
	case e.kind == wire.StatusReturn:
		s.finish(e.val, nil)
		return nil, false, nil
	default:
		return e.val, true, nil
	}
}

// Close abandons a consumer-side sequence: buffered elements are discarded,
// later chunks are dropped, and Next reports STREAM_CLOSED. Other channels
// of the same session are unaffected. Producer-side sequences ignore Close.
func (s *Sequence) Close() {
	if s.events == nil {
		return
	}
	err := errors.New(errors.ErrCodeStreamClosed, "sequence closed by consumer")
	s.events.Close(err)
	s.finish(nil, err)
}

// Return reports the terminal return value. It is only meaningful after
// Next has reported the end of the sequence.
func (s *Sequence) Return() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ret
}

func (s *Sequence) finish(ret any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.ret = ret
	s.err = err
}
