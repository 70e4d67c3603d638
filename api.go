package mqdispatch

import "time"

// PersistentChannel runs actions against a live transport channel, enforcing
// a deadline derived from startTime and its own configuration.
type PersistentChannel[C any] interface {
	InvokeChannelAction(action func(ch C) error, startTime time.Time) error
	Close() error
}

// CommandDispatcher is the part of Dispatcher that does not depend on a
// result type. Typed results go through Invoke and InvokeAsync.
type CommandDispatcher[C any] interface {
	Do(action func(ch C) error) error
	DoAsync(action func(ch C) error) (*Future[struct{}], error)
	Shutdown()
	Closed() bool
}
