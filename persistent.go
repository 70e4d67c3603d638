package mqdispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wgdzlh/mqdispatch/log"

	"go.uber.org/zap"
)

const retryInterval = time.Millisecond * 200

var ErrChannelClosed = errors.New("persistent channel closed")

// ChannelFactory opens and releases transport channels of type C for a
// PersistentChannel.
type ChannelFactory[C any] interface {
	Open() (C, error)
	Close(ch C) error
	// Recoverable reports whether err means the channel is gone and the
	// action should be retried on a fresh one.
	Recoverable(err error) bool
}

// ReconnectingChannel keeps one transport channel open and runs actions on
// it, reopening the channel and retrying after recoverable failures until the
// operation deadline.
type ReconnectingChannel[C any] struct {
	mu               sync.Mutex
	factory          ChannelFactory[C]
	timeout          time.Duration
	includeQueueTime bool
	ch               C
	open             bool
	closed           bool
	logger           *zap.Logger
}

func NewPersistentChannel[C any](factory ChannelFactory[C], cfg *Config) *ReconnectingChannel[C] {
	return &ReconnectingChannel[C]{
		factory:          factory,
		timeout:          cfg.OperationTimeout(),
		includeQueueTime: cfg.IncludeQueueTimeInTimeout,
		logger:           log.Named("persistent-channel"),
	}
}

// InvokeChannelAction runs action against the live channel. The deadline is
// startTime+timeout when queue time counts toward the timeout, otherwise
// now+timeout. A zero timeout means a single attempt without deadline.
func (p *ReconnectingChannel[C]) InvokeChannelAction(action func(ch C) error, startTime time.Time) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrChannelClosed
	}
	if p.timeout <= 0 {
		return p.attempt(action)
	}
	base := time.Now()
	if p.includeQueueTime {
		base = startTime
	}
	deadline := base.Add(p.timeout)
	for i := 0; time.Now().Before(deadline); i++ {
		if i > 0 {
			wait := retryInterval * time.Duration(i)
			if rem := time.Until(deadline); wait > rem {
				wait = rem
			}
			time.Sleep(wait)
			if !time.Now().Before(deadline) {
				break
			}
		}
		if err = p.attempt(action); err == nil || !p.factory.Recoverable(err) {
			return
		}
		p.logger.Warn("channel action failed, reopening channel", zap.Int("attempt", i+1), zap.Error(err))
		p.reset()
	}
	if err != nil {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, p.timeout, err)
	}
	return fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
}

func (p *ReconnectingChannel[C]) attempt(action func(ch C) error) error {
	if !p.open {
		ch, err := p.factory.Open()
		if err != nil {
			return err
		}
		p.ch, p.open = ch, true
	}
	return action(p.ch)
}

func (p *ReconnectingChannel[C]) reset() {
	if !p.open {
		return
	}
	if err := p.factory.Close(p.ch); err != nil {
		p.logger.Debug("close broken channel", zap.Error(err))
	}
	var zero C
	p.ch, p.open = zero, false
}

// Close releases the channel; later invocations fail with ErrChannelClosed.
func (p *ReconnectingChannel[C]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if !p.open {
		return nil
	}
	err := p.factory.Close(p.ch)
	var zero C
	p.ch, p.open = zero, false
	return err
}
