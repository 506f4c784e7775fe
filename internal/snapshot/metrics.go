package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts fixture loads and native tool runs.
type Metrics struct {
	Loads        *prometheus.CounterVec
	Commands     *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functest",
			Subsystem: "snapshot",
			Name:      "loads_total",
			Help:      "Fixture loads by object manager kind and path taken.",
		}, []string{"kind", "path"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "functest",
			Subsystem: "snapshot",
			Name:      "commands_total",
			Help:      "Native dump and restore commands by engine, operation and outcome.",
		}, []string{"engine", "operation", "outcome"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "functest",
			Subsystem: "snapshot",
			Name:      "load_duration_seconds",
			Help:      "Duration of fixture loads by path taken.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"path"}),
	}

	if reg != nil {
		reg.MustRegister(m.Loads, m.Commands, m.LoadDuration)
	}
	return m
}

func (m *Metrics) observeLoad(kind, path string, seconds float64) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(kind, path).Inc()
	m.LoadDuration.WithLabelValues(path).Observe(seconds)
}

func (m *Metrics) observeCommand(engine, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.Commands.WithLabelValues(engine, operation, outcome).Inc()
}
