package stream

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO with failure broadcast. Items pushed before a
// Fail are still delivered; Pop reports the failure only once the backlog is
// drained.
type queue struct {
	mu     sync.Mutex
	items  []any
	err    error
	closed bool
	wake   chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{})}
}

func (q *queue) Push(v any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil || q.closed {
		return
	}
	q.items = append(q.items, v)
	q.broadcast()
}

// Fail poisons the queue. The first error wins.
func (q *queue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.err = err
	q.broadcast()
}

// Close abandons the queue: the backlog is discarded, further pushes are
// dropped, and Pop reports err immediately.
func (q *queue) Close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	if q.err == nil {
		q.err = err
	}
	q.broadcast()
}

// broadcast wakes all waiting Pops. Callers must hold q.mu.
func (q *queue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *queue) Pop(ctx context.Context) (any, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.err != nil {
			err := q.err
			q.mu.Unlock()
			return nil, err
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}
