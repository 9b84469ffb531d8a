package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for chart renders and flag retrieval.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Renders by outcome: "ok", "empty", "error"
	RendersTotal *prometheus.CounterVec

	// Time spent laying out a chart, including flag retrieval
	RenderDuration prometheus.Histogram

	// Upstream flag downloads by result: "ok", "error"
	FlagFetches *prometheus.CounterVec

	// Flag cache lookups by layer ("disk", "redis") or "miss"
	FlagCacheLookups *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "countrytimeline_renders_total",
			Help: "Total timeline renders by outcome",
		}, []string{"outcome"}),

		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "countrytimeline_render_duration_seconds",
			Help:    "Duration of timeline layout including flag retrieval",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		FlagFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "countrytimeline_flag_fetches_total",
			Help: "Total flag image downloads from the flag CDN by result",
		}, []string{"result"}),

		FlagCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "countrytimeline_flag_cache_lookups_total",
			Help: "Flag cache lookups by the layer that answered, or miss",
		}, []string{"layer"}),
	}
}

// IncrementRender records a render outcome.
func (m *Metrics) IncrementRender(outcome string) {
	if m != nil {
		m.RendersTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRenderDuration records how long a render took.
func (m *Metrics) ObserveRenderDuration(d time.Duration) {
	if m != nil {
		m.RenderDuration.Observe(d.Seconds())
	}
}

// IncrementFlagFetch records an upstream flag download.
func (m *Metrics) IncrementFlagFetch(result string) {
	if m != nil {
		m.FlagFetches.WithLabelValues(result).Inc()
	}
}

// IncrementFlagCacheLookup records which cache layer answered a lookup.
func (m *Metrics) IncrementFlagCacheLookup(layer string) {
	if m != nil {
		m.FlagCacheLookups.WithLabelValues(layer).Inc()
	}
}
