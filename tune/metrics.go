package tune

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments Tune updates.
type Metrics struct {
	// fits はモデルの学習回数（outcome: ok, error）
	fits *prometheus.CounterVec
	// fitDuration は 1 回の学習と評価にかかった時間
	fitDuration *prometheus.HistogramVec
	runs        prometheus.Counter
}

// NewMetrics registers the tuning metrics with reg. A nil reg creates
// unregistered instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		fits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apm",
			Name:      "fits_total",
			Help:      "Model fits performed during tuning, by model and outcome",
		}, []string{"model", "outcome"}),
		fitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apm",
			Name:      "fit_duration_seconds",
			Help:      "Time to fit and score one resample",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"model"}),
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "apm",
			Name:      "tune_runs_total",
			Help:      "Completed tuning runs",
		}),
	}
}

func (m *Metrics) observeFit(model string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fits.WithLabelValues(model, outcome).Inc()
	m.fitDuration.WithLabelValues(model).Observe(seconds)
}

func (m *Metrics) observeRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}
