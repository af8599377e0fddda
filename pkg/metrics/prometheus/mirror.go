// Package prometheus mirrors the counter store into a Prometheus registry
// so the same increments feed /metrics. Metric names get the actionlog_
// prefix; the label schema is fixed per counter at first use.
package prometheus

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mirror implements metrics.Mirror on a Prometheus registry. Counter vectors
// are created lazily on first increment because the label schema of a
// counter is only known when it is first used.
type Mirror struct {
	reg      *prometheus.Registry
	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
}

// NewMirror creates a mirror backed by its own registry.
func NewMirror() *Mirror {
	return &Mirror{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Mirror) Registry() *prometheus.Registry {
	return m.reg
}

// Inc adds delta to the mirrored counter. A counter whose label schema
// changed between calls is dropped silently; mirrored metrics are advisory
// and must never fail the caller.
func (m *Mirror) Inc(name string, labels map[string]string, delta int64) {
	if m == nil || delta <= 0 {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = promauto.With(m.reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionlog_" + name,
				Help: "actionlog counter " + name,
			},
			keys,
		)
		m.counters[name] = vec
	}
	m.mu.Unlock()

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}

	counter, err := vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return
	}
	counter.Add(float64(delta))
}
