package stream

import (
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/weft/pkg/errors"
)

func TestSingleFirstSettlementWins(t *testing.T) {
	single, resolve, reject := NewSingle()
	resolve("first")
	reject(fmt.Errorf("too late"))
	resolve("also too late")

	v, err := single.Await(context.Background())
	if err != nil || v != "first" {
		t.Errorf("Await() = %v, %v, want first", v, err)
	}
}

func TestSingleReject(t *testing.T) {
	single, _, reject := NewSingle()
	reject(fmt.Errorf("boom"))

	if _, err := single.Await(context.Background()); err == nil || err.Error() != "boom" {
		t.Errorf("Await() error = %v, want boom", err)
	}
}

func TestGoRunsFunction(t *testing.T) {
	v, err := Go(func() (any, error) { return 42, nil }).Await(context.Background())
	if err != nil || v != 42 {
		t.Errorf("Await() = %v, %v, want 42", v, err)
	}
}

func TestProducerSequenceHasNoNext(t *testing.T) {
	s := NewSequence(func(context.Context, func(any) error) (any, error) { return nil, nil })
	_, _, err := s.Next(context.Background())
	if !errors.Is(err, errors.ErrCodeStreamClosed) {
		t.Errorf("code = %v, want STREAM_CLOSED", errors.GetCode(err))
	}
}

func TestSingleClose(t *testing.T) {
	single, resolve, _ := NewSingle()
	single.Close()
	resolve("too late")

	_, err := single.Await(context.Background())
	if !errors.Is(err, errors.ErrCodeStreamClosed) {
		t.Errorf("code = %v, want STREAM_CLOSED", errors.GetCode(err))
	}
}

func TestConsumerSequenceClose(t *testing.T) {
	s := newConsumerSequence()
	s.events.Push(seqEvent{kind: 0, val: "buffered"})
	s.Close()
	s.events.Push(seqEvent{kind: 0, val: "dropped"})

	_, more, err := s.Next(context.Background())
	if more || !errors.Is(err, errors.ErrCodeStreamClosed) {
		t.Errorf("Next() = %v, %v, want STREAM_CLOSED", more, err)
	}
}

func TestProducerSequenceCloseIsNoop(t *testing.T) {
	s := NewSequence(func(context.Context, func(any) error) (any, error) { return nil, nil })
	s.Close()
	if s.fn == nil {
		t.Error("producer sequence lost its generator")
	}
}

func TestConsumerSequenceTerminalIsSticky(t *testing.T) {
	s := newConsumerSequence()
	s.events.Push(seqEvent{kind: 0, val: "a"})
	s.events.Push(seqEvent{kind: 2, val: "ret"})

	ctx := context.Background()
	if v, more, _ := s.Next(ctx); !more || v != "a" {
		t.Fatalf("Next() = %v, %v", v, more)
	}
	for i := 0; i < 2; i++ {
		_, more, err := s.Next(ctx)
		if more || err != nil {
			t.Fatalf("terminal Next() = %v, %v", more, err)
		}
	}
	if s.Return() != "ret" {
		t.Errorf("Return() = %v, want ret", s.Return())
	}
}
