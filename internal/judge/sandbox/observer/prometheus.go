package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports sandbox metrics through client_golang collectors.
type PrometheusRecorder struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	outputBytes  *prometheus.HistogramVec
	batches      *prometheus.CounterVec
	batchCases   *prometheus.HistogramVec
	batchSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codepulse",
			Subsystem: "sandbox",
			Name:      "runs_total",
			Help:      "Program executions by language and terminal state.",
		}, []string{"language", "terminal"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codepulse",
			Subsystem: "sandbox",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one program execution including container start.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"language"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codepulse",
			Subsystem: "sandbox",
			Name:      "output_bytes",
			Help:      "Captured stdout size of successful executions.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}, []string{"language"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codepulse",
			Subsystem: "judge",
			Name:      "batches_total",
			Help:      "Judged batches by mode and verdict.",
		}, []string{"mode", "verdict"}),
		batchCases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codepulse",
			Subsystem: "judge",
			Name:      "batch_cases",
			Help:      "Cases executed per batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}, []string{"mode"}),
		batchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codepulse",
			Subsystem: "judge",
			Name:      "batch_duration_seconds",
			Help:      "Summed case execution time per batch.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"mode"}),
	}
	for _, c := range []prometheus.Collector{r.runs, r.runDuration, r.outputBytes, r.batches, r.batchCases, r.batchSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveRun(_ context.Context, languageID string, terminal string, wallTimeMs int64, outputBytes int64) {
	r.runs.WithLabelValues(languageID, terminal).Inc()
	r.runDuration.WithLabelValues(languageID).Observe(float64(wallTimeMs) / 1000)
	if outputBytes > 0 {
		r.outputBytes.WithLabelValues(languageID).Observe(float64(outputBytes))
	}
}

func (r *PrometheusRecorder) ObserveBatch(_ context.Context, mode string, verdict string, cases int, totalTimeMs int64) {
	r.batches.WithLabelValues(mode, verdict).Inc()
	r.batchCases.WithLabelValues(mode).Observe(float64(cases))
	r.batchSeconds.WithLabelValues(mode).Observe(float64(totalTimeMs) / 1000)
}
