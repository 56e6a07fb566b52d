// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	herrors "github.com/valpere/FeedHarvester/internal/errors"
	"github.com/valpere/FeedHarvester/internal/harvest"
)

// MetricsManager manages Prometheus metrics for FeedHarvester. It is a
// harvest.Observer, so attaching it to a Harvester is enough to record
// job, cycle and record metrics.
type MetricsManager struct {
	registry *prometheus.Registry

	// Job metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsActive  prometheus.Gauge

	// Harvest loop metrics
	recordsAccepted *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	recordsSkipped  *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	cycleFailures   *prometheus.CounterVec
	loopStops       *prometheus.CounterVec

	// Output metrics
	outputSuccess  *prometheus.CounterVec
	outputErrors   *prometheus.CounterVec
	outputTime     *prometheus.HistogramVec
	recordsWritten *prometheus.CounterVec

	// HTTP metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimitHits   *prometheus.CounterVec

	// System metrics
	goroutineCount prometheus.Gauge

	// started tracks jobs that emitted job_started, so jobs_active only
	// counts jobs that got past input validation
	started   map[string]struct{}
	startedMu sync.Mutex

	namespace string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string `json:"namespace"`
	EnableGoMetrics bool   `json:"enable_go_metrics"`
}

// NewMetricsManager creates a metrics manager with its own registry
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "feedharvester"
	}

	mm := &MetricsManager{
		registry:  prometheus.NewRegistry(),
		started:   make(map[string]struct{}),
		namespace: config.Namespace,
	}

	if config.EnableGoMetrics {
		mm.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	mm.initializeMetrics()

	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics() {
	factory := promauto.With(mm.registry)

	// Job metrics
	mm.jobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "jobs_total",
			Help:      "Total number of harvest jobs by outcome",
		},
		[]string{"kind", "status"},
	)

	mm.jobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "job_duration_seconds",
			Help:      "Harvest job duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	mm.jobsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "jobs_active",
			Help:      "Number of currently running harvest jobs",
		},
	)

	// Harvest loop metrics
	mm.recordsAccepted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "records_accepted_total",
			Help:      "Total number of records accepted into results",
		},
		[]string{"kind"},
	)

	mm.duplicates = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of records skipped as already seen",
		},
		[]string{"kind"},
	)

	mm.recordsSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "records_skipped_total",
			Help:      "Total number of records rejected as unacceptable or unbuildable",
		},
		[]string{"kind"},
	)

	mm.cycles = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "cycles_total",
			Help:      "Total number of reveal cycles started",
		},
		[]string{"kind"},
	)

	mm.cycleFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "cycle_failures_total",
			Help:      "Total number of recoverable cycle failures",
		},
		[]string{"kind"},
	)

	mm.loopStops = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "harvest",
			Name:      "loop_stops_total",
			Help:      "Reveal loops that ended normally, by reason",
		},
		[]string{"kind", "reason"},
	)

	// Output metrics
	mm.outputSuccess = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "output",
			Name:      "success_total",
			Help:      "Total number of successful output operations",
		},
		[]string{"format"},
	)

	mm.outputErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "output",
			Name:      "errors_total",
			Help:      "Total number of output errors",
		},
		[]string{"format"},
	)

	mm.outputTime = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "output",
			Name:      "duration_seconds",
			Help:      "Output operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"format"},
	)

	mm.recordsWritten = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "output",
			Name:      "records_written_total",
			Help:      "Total number of records written to output",
		},
		[]string{"format"},
	)

	// HTTP metrics
	mm.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"route", "method", "status_code"},
	)

	mm.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"route"},
	)

	mm.rateLimitHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// System metrics
	mm.goroutineCount = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Name:      "goroutines_count",
			Help:      "Current number of goroutines",
		},
	)
}

// HandleEvent implements harvest.Observer
func (mm *MetricsManager) HandleEvent(e harvest.Event) {
	kind := string(e.Kind)

	switch e.Type {
	case harvest.EventJobStarted:
		mm.startedMu.Lock()
		mm.started[e.JobID] = struct{}{}
		mm.startedMu.Unlock()
		mm.jobsActive.Inc()
	case harvest.EventCycleStarted:
		mm.cycles.WithLabelValues(kind).Inc()
	case harvest.EventRecordAccepted:
		mm.recordsAccepted.WithLabelValues(kind).Inc()
	case harvest.EventDuplicateSkipped:
		mm.duplicates.WithLabelValues(kind).Inc()
	case harvest.EventRecordSkipped:
		mm.recordsSkipped.WithLabelValues(kind).Inc()
	case harvest.EventCycleFailed:
		mm.cycleFailures.WithLabelValues(kind).Inc()
	case harvest.EventLoopStopped:
		mm.loopStops.WithLabelValues(kind, string(e.Reason)).Inc()
	case harvest.EventJobFinished:
		mm.startedMu.Lock()
		_, ok := mm.started[e.JobID]
		delete(mm.started, e.JobID)
		mm.startedMu.Unlock()
		if ok {
			mm.jobsActive.Dec()
		}
		mm.jobsTotal.WithLabelValues(kind, jobStatus(e.Err)).Inc()
		mm.jobDuration.WithLabelValues(kind).Observe(e.Duration.Seconds())
	}
}

// jobStatus labels a finished job with "success" or its error class
func jobStatus(err error) string {
	if err == nil {
		return "success"
	}
	if class := herrors.ClassOf(err); class != "" {
		return string(class)
	}
	return "error"
}

// RecordOutputSuccess records a successful output write
func (mm *MetricsManager) RecordOutputSuccess(format string, duration time.Duration, records int) {
	mm.outputSuccess.WithLabelValues(format).Inc()
	mm.outputTime.WithLabelValues(format).Observe(duration.Seconds())
	mm.recordsWritten.WithLabelValues(format).Add(float64(records))
}

// RecordOutputError records a failed output write
func (mm *MetricsManager) RecordOutputError(format string) {
	mm.outputErrors.WithLabelValues(format).Inc()
}

// RecordRequest records one served HTTP request
func (mm *MetricsManager) RecordRequest(route, method string, statusCode int, duration time.Duration) {
	mm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	mm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRateLimitHit records a request rejected by the rate limiter
func (mm *MetricsManager) RecordRateLimitHit(route string) {
	mm.rateLimitHits.WithLabelValues(route).Inc()
}

// UpdateGoroutineCount samples the goroutine gauge
func (mm *MetricsManager) UpdateGoroutineCount() {
	mm.goroutineCount.Set(float64(runtime.NumGoroutine()))
}

// Registry exposes the underlying registry for tests and extra collectors
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns the HTTP handler for the metrics endpoint. The
// goroutine gauge is sampled on every scrape.
func (mm *MetricsManager) MetricsHandler() http.Handler {
	h := promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mm.UpdateGoroutineCount()
		h.ServeHTTP(w, r)
	})
}

// GetMetrics returns a snapshot of job counters keyed by metric name
func (mm *MetricsManager) GetMetrics() map[string]interface{} {
	families, err := mm.registry.Gather()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	out := make(map[string]interface{}, len(families))
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[mf.GetName()] = total
	}
	return out
}
