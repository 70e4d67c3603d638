package mqdispatch

import (
	"context"
	"sync"
)

// Future is the one-shot result slot of a dispatched command. It is completed
// exactly once by the dispatcher worker, or as cancelled when the dispatcher
// shuts down before the command runs.
type Future[T any] struct {
	done      chan struct{}
	once      sync.Once
	val       T
	err       error
	cancelled bool
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

func (f *Future[T]) cancel() {
	f.once.Do(func() {
		f.err = ErrCancelled
		f.cancelled = true
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the command completes. The error is the one returned by
// the channel action itself, or ErrCancelled. An optional ctx bounds the wait
// only; the command keeps its place in the queue.
func (f *Future[T]) Get(ctx ...context.Context) (val T, err error) {
	if len(ctx) > 0 && ctx[0] != nil {
		select {
		case <-f.done:
		case <-ctx[0].Done():
			err = ctx[0].Err()
			return
		}
	} else {
		<-f.done
	}
	return f.val, f.err
}

// Result is a non-blocking Get; ok is false while the command is pending.
func (f *Future[T]) Result() (val T, ok bool, err error) {
	select {
	case <-f.done:
		return f.val, true, f.err
	default:
		return
	}
}

// Cancelled reports whether the command was dropped by shutdown. It is only
// meaningful after Done is closed.
func (f *Future[T]) Cancelled() bool {
	select {
	case <-f.done:
		return f.cancelled
	default:
		return false
	}
}

// OnDone runs cb in its own goroutine after completion.
func (f *Future[T]) OnDone(cb func(val T, err error)) {
	go func() {
		<-f.done
		cb(f.val, f.err)
	}()
}
