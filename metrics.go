package wishpage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/page"
)

const metricsNamespace = "wishpage"

// metrics holds the pipeline counters. HTTP request metrics come from the
// echoprometheus middleware on the same registry.
type metrics struct {
	generated      *prometheus.CounterVec
	resolved       *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		generated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_generated_total",
			Help:      "Generation requests by outcome.",
		}, []string{"result"}),
		resolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pages_resolved_total",
			Help:      "Page and gallery lookups by outcome.",
		}, []string{"view", "result"}),
		uploadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "asset_upload_duration_seconds",
			Help:      "Time to store a single uploaded asset.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind", "result"}),
	}
}

// observeUpload satisfies page.UploadObserver.
func (m *metrics) observeUpload(_ string, kind assets.Kind, elapsed time.Duration, err error) {
	m.uploadDuration.WithLabelValues(kind.String(), outcome(err)).Observe(elapsed.Seconds())
}

// outcome maps a pipeline error to a low-cardinality label value.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch page.KindOf(err) {
	case page.KindUpload:
		return "upload_failed"
	case page.KindManifest:
		return "manifest_failed"
	case page.KindNotFound:
		return "not_found"
	case page.KindRender:
		return "render_failed"
	default:
		return "error"
	}
}
