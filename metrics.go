package mqdispatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

type metrics struct {
	commands  *prometheus.CounterVec
	queueWait prometheus.Histogram
	execution prometheus.Histogram
	depth     prometheus.GaugeFunc
}

func newMetrics(depth func() int) *metrics {
	return &metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqdispatch",
			Name:      "commands_total",
			Help:      "Channel commands settled by the dispatcher, by outcome.",
		}, []string{"outcome"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mqdispatch",
			Name:      "queue_wait_seconds",
			Help:      "Time between submission and execution start.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		execution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mqdispatch",
			Name:      "execution_seconds",
			Help:      "Time spent inside the persistent channel per command.",
			Buckets:   prometheus.DefBuckets,
		}),
		depth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mqdispatch",
			Name:      "queue_depth",
			Help:      "Commands waiting for the worker.",
		}, func() float64 { return float64(depth()) }),
	}
}

// register adopts the collectors already registered under the same
// dispatcher name, so dispatchers sharing a name count into one series.
// queue_depth stays bound to the first dispatcher registered under the name.
func (m *metrics) register(reg prometheus.Registerer) (err error) {
	if m.commands, err = adopt(reg, m.commands); err != nil {
		return
	}
	if m.queueWait, err = adopt(reg, m.queueWait); err != nil {
		return
	}
	if m.execution, err = adopt(reg, m.execution); err != nil {
		return
	}
	m.depth, err = adopt(reg, m.depth)
	return
}

func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *metrics) settled(err error) {
	switch {
	case err == nil:
		m.commands.WithLabelValues(outcomeSucceeded).Inc()
	case errors.Is(err, ErrCancelled):
		m.commands.WithLabelValues(outcomeCancelled).Inc()
	default:
		m.commands.WithLabelValues(outcomeFailed).Inc()
	}
}
