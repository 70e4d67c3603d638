package mqdispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/wgdzlh/mqdispatch/log"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type options struct {
	name       string
	registerer prometheus.Registerer
}

type Option func(*options)

// WithName labels logs and metrics of the dispatcher.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithRegisterer exports the dispatcher metrics through reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// Dispatcher serializes channel commands from any number of goroutines onto
// a single worker goroutine, the only user of its PersistentChannel.
// Commands run one at a time in the order they were enqueued.
type Dispatcher[C any] struct {
	name       string
	background bool
	channel    PersistentChannel[C]
	queue      *dispatchQueue[C]
	metrics    *metrics
	logger     *zap.Logger
	closeOnce  sync.Once
	stopped    chan struct{}
}

var _ CommandDispatcher[any] = (*Dispatcher[any])(nil)

// NewDispatcher takes ownership of pc and starts the worker.
func NewDispatcher[C any](cfg *Config, pc PersistentChannel[C], opts ...Option) (d *Dispatcher[C], err error) {
	if cfg == nil || pc == nil {
		err = fmt.Errorf("%w: config and persistent channel are required", ErrInvalidConfig)
		return
	}
	o := &options{name: "default"}
	for _, opt := range opts {
		opt(o)
	}
	d = &Dispatcher[C]{
		name:       o.name,
		background: cfg.UseBackgroundThreads,
		channel:    pc,
		queue:      newDispatchQueue[C](QueueSize),
		logger:     log.Named("dispatcher").With(zap.String("dispatcher", o.name)),
		stopped:    make(chan struct{}),
	}
	d.metrics = newMetrics(d.queue.depth)
	if o.registerer != nil {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"dispatcher": o.name}, o.registerer)
		if err = d.metrics.register(reg); err != nil {
			d.logger.Error("register dispatcher metrics failed", zap.Error(err))
			return nil, err
		}
	}
	go d.loop()
	return
}

// Invoke runs action on the dispatcher's channel and waits for it. The error
// is exactly what action returned, a persistent channel error such as
// ErrTimeout, or ErrCancelled after Shutdown.
func Invoke[T, C any](d *Dispatcher[C], action func(ch C) (T, error)) (val T, err error) {
	f, err := InvokeAsync(d, action)
	if err != nil {
		return
	}
	return f.Get()
}

// InvokeAsync enqueues action and returns its future. It blocks while the
// queue is full. After Shutdown the future is already cancelled.
func InvokeAsync[T, C any](d *Dispatcher[C], action func(ch C) (T, error)) (*Future[T], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	e, f := newEnvelope(action)
	d.submit(e)
	return f, nil
}

// Do is Invoke for actions without a result.
func (d *Dispatcher[C]) Do(action func(ch C) error) error {
	if action == nil {
		return ErrNilAction
	}
	_, err := Invoke(d, withNoContent(action))
	return err
}

// DoAsync is InvokeAsync for actions without a result.
func (d *Dispatcher[C]) DoAsync(action func(ch C) error) (*Future[struct{}], error) {
	if action == nil {
		return nil, ErrNilAction
	}
	return InvokeAsync(d, withNoContent(action))
}

func (d *Dispatcher[C]) submit(e *envelope[C]) {
	if err := d.queue.push(e); err != nil {
		e.cancel()
		d.metrics.settled(err)
		d.logger.Debug("command rejected after shutdown", zap.String("id", e.id))
	}
}

func (d *Dispatcher[C]) loop() {
	defer close(d.stopped)
	d.logger.Info("command dispatcher started", zap.Bool("background", d.background))
	for {
		e, ok := d.queue.pop()
		if !ok {
			break
		}
		if d.queue.isShutdown() {
			d.cancel(e)
			break
		}
		d.execute(e)
	}
	for _, e := range d.queue.drain() {
		d.cancel(e)
	}
	if err := d.channel.Close(); err != nil {
		d.logger.Warn("close persistent channel failed", zap.Error(err))
	}
	d.logger.Info("command dispatcher stopped")
}

func (d *Dispatcher[C]) execute(e *envelope[C]) {
	start := time.Now()
	d.metrics.queueWait.Observe(start.Sub(e.submittedAt).Seconds())
	err := d.invoke(e)
	d.metrics.execution.Observe(time.Since(start).Seconds())
	e.finish(err)
	d.metrics.settled(err)
	if err != nil {
		d.logger.Debug("channel command failed", zap.String("id", e.id), zap.Error(err))
	}
}

// invoke keeps a panicking action from taking the worker down.
func (d *Dispatcher[C]) invoke(e *envelope[C]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			d.logger.Error("channel command panicked", zap.String("id", e.id),
				zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return d.channel.InvokeChannelAction(e.run, e.submittedAt)
}

func (d *Dispatcher[C]) cancel(e *envelope[C]) {
	e.cancel()
	d.metrics.settled(ErrCancelled)
	d.logger.Debug("queued command cancelled by shutdown", zap.String("id", e.id))
}

// Shutdown cancels queued and future commands and releases the persistent
// channel once the command in progress, if any, returns. Unless the config
// asked for background threads it waits for the worker to stop, so it must
// not be called from inside a channel action.
func (d *Dispatcher[C]) Shutdown() {
	d.closeOnce.Do(func() {
		d.logger.Info("shutting down command dispatcher")
		d.queue.shutdown()
		d.queue.seal()
	})
	if !d.background {
		<-d.stopped
	}
}

func (d *Dispatcher[C]) Closed() bool {
	return d.queue.isShutdown()
}

// Stopped is closed after the worker has exited and released the channel.
func (d *Dispatcher[C]) Stopped() <-chan struct{} {
	return d.stopped
}
