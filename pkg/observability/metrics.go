package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/traverse/pkg/domain"
)

// Observable is the listener surface the metrics attach to. It is
// satisfied by traverse.Navigator.
type Observable interface {
	On(t domain.EventType, h domain.Handler) func()
	Entries() []*domain.Entry
}

// Metrics records navigation lifecycle metrics.
type Metrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	depth       prometheus.Gauge
	disposals   prometheus.Counter

	mu     sync.Mutex
	starts map[string]time.Time // entry ID -> navigate event time
}

// NewMetrics creates and registers the collectors on the given registerer.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traverse_transitions_total",
				Help: "Total number of settled transitions",
			},
			[]string{"type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "traverse_transition_duration_seconds",
				Help: "Duration from acceptance to settlement",
			},
			[]string{"type"},
		),
		depth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "traverse_history_depth",
				Help: "Number of entries in the history sequence",
			},
		),
		disposals: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "traverse_disposals_total",
				Help: "Total number of disposed entries",
			},
		),
		starts: make(map[string]time.Time),
	}
	reg.MustRegister(m.transitions, m.duration, m.depth, m.disposals)
	return m
}

// Attach subscribes to the navigator's lifecycle events. The returned
// function detaches all listeners.
func (m *Metrics) Attach(nav Observable) func() {
	removers := []func(){
		nav.On(domain.EventNavigate, func(ev *domain.Event) error {
			if ev.Entry != nil {
				m.mu.Lock()
				m.starts[ev.Entry.ID()] = time.Now()
				m.mu.Unlock()
			}
			return nil
		}),
		nav.On(domain.EventNavigateSuccess, func(ev *domain.Event) error {
			m.settle(ev, "success")
			m.depth.Set(float64(len(nav.Entries())))
			return nil
		}),
		nav.On(domain.EventNavigateError, func(ev *domain.Event) error {
			m.settle(ev, "error")
			m.depth.Set(float64(len(nav.Entries())))
			return nil
		}),
		nav.On(domain.EventDispose, func(ev *domain.Event) error {
			m.disposals.Inc()
			return nil
		}),
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}

func (m *Metrics) settle(ev *domain.Event, outcome string) {
	m.transitions.WithLabelValues(string(ev.NavigationType), outcome).Inc()

	if ev.Entry == nil {
		return
	}
	m.mu.Lock()
	start, ok := m.starts[ev.Entry.ID()]
	if ok {
		delete(m.starts, ev.Entry.ID())
	}
	m.mu.Unlock()
	if ok {
		m.duration.WithLabelValues(string(ev.NavigationType)).Observe(time.Since(start).Seconds())
	}
}
