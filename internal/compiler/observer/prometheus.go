package observer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "polyjudge"

// PrometheusRecorder exports pipeline metrics as Prometheus collectors.
type PrometheusRecorder struct {
	compileTotal    *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	loadTotal       *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compilations by language and result status.",
		}, []string{"language", "status"}),
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Wall time of compiler processes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"language"}),
		loadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "language_load_total",
			Help:      "Language definition files by load outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{r.compileTotal, r.compileDuration, r.loadTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, status string, duration time.Duration) {
	r.compileTotal.WithLabelValues(languageID, status).Inc()
	r.compileDuration.WithLabelValues(languageID).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveLoad(ctx context.Context, outcome string) {
	r.loadTotal.WithLabelValues(outcome).Inc()
}
