package mqdispatch

import "time"

// envelope is one queued command. run may be called more than once when the
// persistent channel retries it; finish and cancel settle the caller's future.
type envelope[C any] struct {
	id          string
	submittedAt time.Time
	run         func(ch C) error
	finish      func(err error)
	cancel      func()
}

func newEnvelope[T, C any](action func(ch C) (T, error)) (*envelope[C], *Future[T]) {
	f := newFuture[T]()
	var val T
	e := &envelope[C]{
		id:          GetUniqKey(),
		submittedAt: time.Now(),
		run: func(ch C) (err error) {
			val, err = action(ch)
			return
		},
		finish: func(err error) {
			if err != nil {
				var zero T
				f.complete(zero, err)
				return
			}
			f.complete(val, nil)
		},
		cancel: f.cancel,
	}
	return e, f
}

type noContent = struct{}

func withNoContent[C any](action func(ch C) error) func(ch C) (noContent, error) {
	return func(ch C) (noContent, error) {
		return noContent{}, action(ch)
	}
}
