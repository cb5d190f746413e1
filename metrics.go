package subsys

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// hostMetrics holds the host's lifecycle collectors. A nil *hostMetrics is
// valid and records nothing.
type hostMetrics struct {
	phases   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	state    *prometheus.GaugeVec
}

func newHostMetrics(reg prometheus.Registerer) *hostMetrics {
	return &hostMetrics{
		phases: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsys_phase_total",
				Help: "Lifecycle calls by subsystem, phase and result status",
			},
			[]string{"subsystem", "phase", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "subsys_phase_duration_seconds",
				Help:    "Duration of lifecycle calls",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"subsystem", "phase"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "subsys_state",
				Help: "Lifecycle state per subsystem (0 unconfigured, 1 configured, 2 started, 3 stopped)",
			},
			[]string{"subsystem"},
		),
	}
}

func (m *hostMetrics) observe(subsystem string, phase Phase, res Result, d time.Duration) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(subsystem, phase.String(), res.Status().String()).Inc()
	m.duration.WithLabelValues(subsystem, phase.String()).Observe(d.Seconds())
}

func (m *hostMetrics) setState(subsystem string, s State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(subsystem).Set(float64(s))
}
