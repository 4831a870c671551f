package aio

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/tags"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "reactor"

type metrics struct {
	submitted    prometheus.Counter
	completed    prometheus.Counter
	orphaned     prometheus.Counter
	released     prometheus.Counter
	dropped      prometheus.Counter
	backpressure prometheus.Counter
	violations   prometheus.Counter
	inflight     prometheus.GaugeFunc
	orphans      prometheus.GaugeFunc
}

func newMetrics(registerer prometheus.Registerer, namespace string, table *tags.Table) (*metrics, error) {
	counter := func(name string, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name string, help string, fn func() float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, fn)
	}
	m := &metrics{
		submitted:    counter("submitted_total", "Operations pushed to the submission queue."),
		completed:    counter("completed_total", "Completions reaped and dispatched."),
		orphaned:     counter("orphaned_total", "Operations abandoned by their caller while in flight."),
		released:     counter("orphans_released_total", "Orphaned operations released after their completion."),
		dropped:      counter("dropped_total", "Completed operations whose event was collected without being awaited."),
		backpressure: counter("backpressure_total", "Submissions that had to wait for a free slot."),
		violations:   counter("protocol_violations_total", "Completions carrying an unknown or stale tag."),
		inflight: gauge("inflight", "Operations holding a tag.", func() float64 {
			return float64(table.InFlight())
		}),
		orphans: gauge("orphans", "Orphaned operations waiting for their completion.", func() float64 {
			return float64(table.Orphans())
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := registerer.Register(c); err != nil {
			return nil, errors.From(
				ErrInvalidOptions,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithWrap(err),
			)
		}
	}
	return m, nil
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submitted, m.completed, m.orphaned, m.released, m.dropped,
		m.backpressure, m.violations, m.inflight, m.orphans,
	}
}

func (m *metrics) unregister(registerer prometheus.Registerer) {
	if registerer == nil {
		return
	}
	for _, c := range m.collectors() {
		registerer.Unregister(c)
	}
}
