package mqdispatch

import "errors"

var (
	ErrNilAction     = errors.New("channel action must not be nil")
	ErrCancelled     = errors.New("dispatcher shut down, command cancelled")
	ErrTimeout       = errors.New("channel action timed out")
	ErrInvalidConfig = errors.New("invalid connection configuration")
	ErrPanic         = errors.New("channel action panicked")
)
