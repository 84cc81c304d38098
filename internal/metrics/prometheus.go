// Prometheus-backed collectors for operational visibility. The in-process
// Registry stays the cheap default for tests; this bridge is what the API
// server exposes on /metrics.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all recon engine metrics.
	namespace = "netrecon"

	// Subsystems.
	subsystemScan     = "scan"
	subsystemProbe    = "probe"
	subsystemEvents   = "events"
	subsystemTopology = "topology"
	subsystemAPI      = "api"
	subsystemSystem   = "system"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	scanErrors      *prometheus.CounterVec
	vulnsDiscovered *prometheus.CounterVec
	activeScans     prometheus.Gauge

	// Probe metrics
	probeAttempts *prometheus.CounterVec
	probeRetries  *prometheus.CounterVec
	portsOpen     *prometheus.CounterVec

	// Event metrics
	eventsPublished *prometheus.CounterVec
	handlerErrors   *prometheus.CounterVec

	// Topology metrics
	layoutDuration prometheus.Histogram
	layoutNodes    prometheus.Gauge

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initProbeMetrics()
	pm.initEventMetrics()
	pm.initTopologyMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()
	pm.registerMetrics()

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by type and terminal status",
		},
		[]string{"scan_type", "status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
		[]string{"scan_type"},
	)

	pm.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of scan errors by type and error",
		},
		[]string{"scan_type", "error_type"},
	)

	pm.vulnsDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "vulnerabilities_total",
			Help:      "Total number of vulnerabilities discovered by severity",
		},
		[]string{"scan_type", "severity"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active scans",
		},
	)
}

func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "attempts_total",
			Help:      "Total number of port connection attempts by outcome",
		},
		[]string{"status"},
	)

	pm.probeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "retries_total",
			Help:      "Total number of probe retries after transient failures",
		},
		[]string{"error_type"},
	)

	pm.portsOpen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "ports_open_total",
			Help:      "Total number of open ports discovered",
		},
		[]string{"service"},
	)
}

func (pm *PrometheusMetrics) initEventMetrics() {
	pm.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEvents,
			Name:      "published_total",
			Help:      "Total number of events published by type",
		},
		[]string{"event_type"},
	)

	pm.handlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEvents,
			Name:      "handler_errors_total",
			Help:      "Total number of subscriber handler failures by event type",
		},
		[]string{"event_type"},
	)
}

func (pm *PrometheusMetrics) initTopologyMetrics() {
	pm.layoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemTopology,
			Name:      "layout_duration_seconds",
			Help:      "Duration of force-directed layout passes in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0},
		},
	)

	pm.layoutNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemTopology,
			Name:      "nodes",
			Help:      "Node count of the most recent layout pass",
		},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry.
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.scansTotal)
	pm.registry.MustRegister(pm.scanDuration)
	pm.registry.MustRegister(pm.scanErrors)
	pm.registry.MustRegister(pm.vulnsDiscovered)
	pm.registry.MustRegister(pm.activeScans)

	pm.registry.MustRegister(pm.probeAttempts)
	pm.registry.MustRegister(pm.probeRetries)
	pm.registry.MustRegister(pm.portsOpen)

	pm.registry.MustRegister(pm.eventsPublished)
	pm.registry.MustRegister(pm.handlerErrors)

	pm.registry.MustRegister(pm.layoutDuration)
	pm.registry.MustRegister(pm.layoutNodes)

	pm.registry.MustRegister(pm.httpRequests)
	pm.registry.MustRegister(pm.httpDuration)

	pm.registry.MustRegister(pm.memoryUsage)
	pm.registry.MustRegister(pm.goroutines)
	pm.registry.MustRegister(pm.uptime)
}

// GetRegistry returns the Prometheus registry for the HTTP handler.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// IncrementScansTotal increments the total scan counter.
func (pm *PrometheusMetrics) IncrementScansTotal(scanType, status string) {
	pm.scansTotal.WithLabelValues(scanType, status).Inc()
}

// RecordScanDuration records a scan duration.
func (pm *PrometheusMetrics) RecordScanDuration(scanType string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(scanType).Observe(duration.Seconds())
}

// IncrementScanErrors increments scan error counter.
func (pm *PrometheusMetrics) IncrementScanErrors(scanType, errorType string) {
	pm.scanErrors.WithLabelValues(scanType, errorType).Inc()
}

// IncrementVulnerabilities increments the discovered vulnerability counter.
func (pm *PrometheusMetrics) IncrementVulnerabilities(scanType, severity string) {
	pm.vulnsDiscovered.WithLabelValues(scanType, severity).Inc()
}

// SetActiveScans sets the number of active scans.
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// IncrementProbeAttempts increments the probe attempt counter.
func (pm *PrometheusMetrics) IncrementProbeAttempts(status string) {
	pm.probeAttempts.WithLabelValues(status).Inc()
}

// IncrementProbeRetries increments the probe retry counter.
func (pm *PrometheusMetrics) IncrementProbeRetries(errorType string) {
	pm.probeRetries.WithLabelValues(errorType).Inc()
}

// IncrementPortsOpen increments the open-port counter.
func (pm *PrometheusMetrics) IncrementPortsOpen(service string) {
	pm.portsOpen.WithLabelValues(service).Inc()
}

// IncrementEventsPublished increments the published event counter.
func (pm *PrometheusMetrics) IncrementEventsPublished(eventType string) {
	pm.eventsPublished.WithLabelValues(eventType).Inc()
}

// IncrementHandlerErrors increments the handler failure counter.
func (pm *PrometheusMetrics) IncrementHandlerErrors(eventType string) {
	pm.handlerErrors.WithLabelValues(eventType).Inc()
}

// RecordLayoutPass records a topology layout pass.
func (pm *PrometheusMetrics) RecordLayoutPass(duration time.Duration, nodes int) {
	pm.layoutDuration.Observe(duration.Seconds())
	pm.layoutNodes.Set(float64(nodes))
}

// IncrementHTTPRequests increments HTTP request counter.
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration.
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics updates all system metrics with current values.
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time.
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates starts a goroutine that periodically updates system metrics.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

// Global instance for easy access.
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance.
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
