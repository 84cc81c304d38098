package metrics

// MetricsRegistry is the recording surface the rest of the engine depends
// on, so scan and probe paths can be tested against a bare registry.
type MetricsRegistry interface {
	// SetEnabled toggles recording; a disabled registry drops samples.
	SetEnabled(enabled bool)

	// IsEnabled reports whether samples are currently recorded.
	IsEnabled() bool

	// Counter increments the named counter.
	Counter(name string, labels Labels)

	// Gauge sets the named gauge.
	Gauge(name string, value float64, labels Labels)

	// Histogram records one observation under the named histogram.
	Histogram(name string, value float64, labels Labels)

	// GetMetrics snapshots every recorded metric.
	GetMetrics() map[string]*Metric

	// Reset drops all recorded metrics.
	Reset()
}

var _ MetricsRegistry = (*Registry)(nil)
