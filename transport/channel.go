package transport

import (
	"context"
	"sync/atomic"
)

// queue is a context-aware buffered channel. Send and Receive unblock when
// either the caller's context or the owning transport's context is done.
type queue[T any] struct {
	channel    chan T
	context    context.Context
	bufferSize int
	closed     atomic.Int32
}

func newQueue[T any](ctx context.Context, bufferSize int) *queue[T] {
	return &queue[T]{
		channel:    make(chan T, bufferSize),
		context:    ctx,
		bufferSize: bufferSize,
	}
}

func (q *queue[T]) Send(ctx context.Context, message T) error {
	select {
	case q.channel <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.context.Done():
		return q.context.Err()
	}
}

func (q *queue[T]) Receive(ctx context.Context) (T, error) {
	select {
	case message := <-q.channel:
		return message, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-q.context.Done():
		var zero T
		return zero, q.context.Err()
	}
}

func (q *queue[T]) Close() {
	if q.closed.CompareAndSwap(0, 1) {
		close(q.channel)
	}
}

func (q *queue[T]) Len() int {
	return len(q.channel)
}
