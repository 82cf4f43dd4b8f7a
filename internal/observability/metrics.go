package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	TurnsTotal       *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec
	NarratorErrors   *prometheus.CounterVec
	NarratorLatency  prometheus.Histogram
	InFlightTurns    prometheus.Gauge
}

// NewMetrics registers the instruments on the given registerer. Tests pass a
// fresh registry; main passes the default one.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed game turns by kind.",
		}, []string{"kind"}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "State machine transitions by destination stage.",
		}, []string{"to"}),
		NarratorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrator_errors_total",
			Help:      "Narration failures covered by fallback flavor text.",
		}, []string{"reason"}),
		NarratorLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrator_latency_ms",
			Help:      "Narration round-trip latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}),
		InFlightTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_turns",
			Help:      "Turns currently holding a per-user session lock.",
		}),
	}
}

func (m *Metrics) ObserveNarratorLatency(d time.Duration) {
	m.NarratorLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
