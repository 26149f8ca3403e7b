// Package telemetry keeps rolling latency windows and counters for the
// analysis pipeline and exposes them as JSON snapshots and Prometheus metrics.
package telemetry

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trustlens/evidence-verifier/internal/models"
)

// Measured operations
const (
	OpPatternDetection = "pattern_detection"
	OpURLExtraction    = "url_extraction"
	OpURLVerification  = "url_verification"
	OpHeuristics       = "heuristics"
	OpFullAnalysis     = "full_analysis"
)

// Operations lists every operation reported in a snapshot
var Operations = []string{
	OpPatternDetection,
	OpURLExtraction,
	OpURLVerification,
	OpHeuristics,
	OpFullAnalysis,
}

// DefaultWindowSize is how many recent samples each operation keeps
const DefaultWindowSize = 100

// window is a fixed-size ring of latency samples in milliseconds
type window struct {
	samples []float64
	next    int
	full    bool
}

func newWindow(size int) *window {
	return &window{samples: make([]float64, size)}
}

func (w *window) add(ms float64) {
	w.samples[w.next] = ms
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) values() []float64 {
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	out := make([]float64, n)
	copy(out, w.samples[:n])
	return out
}

// Monitor records pipeline latencies and verification outcomes. All methods
// are safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	windowSize int
	windows    map[string]*window
	started    time.Time
	now        func() time.Time

	commentsProcessed int
	urlsVerified      int
	verifiedOK        int
	verifiedFailed    int

	registry      *prometheus.Registry
	latency       *prometheus.HistogramVec
	comments      prometheus.Counter
	verifications *prometheus.CounterVec
}

// NewMonitor creates a monitor keeping windowSize samples per operation
func NewMonitor(windowSize int) *Monitor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Monitor{
		windowSize: windowSize,
		now:        time.Now,
		registry:   registry,
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trustlens",
				Subsystem: "evidence",
				Name:      "operation_duration_seconds",
				Help:      "Duration of evidence pipeline operations in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		comments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trustlens",
			Subsystem: "evidence",
			Name:      "comments_processed_total",
			Help:      "Total number of comments analyzed",
		}),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trustlens",
				Subsystem: "evidence",
				Name:      "url_verifications_total",
				Help:      "Total number of URL verifications by outcome",
			},
			[]string{"outcome"},
		),
	}
	m.resetLocked()

	return m
}

func (m *Monitor) resetLocked() {
	m.windows = make(map[string]*window, len(Operations))
	for _, op := range Operations {
		m.windows[op] = newWindow(m.windowSize)
	}
	m.started = m.now()
	m.commentsProcessed = 0
	m.urlsVerified = 0
	m.verifiedOK = 0
	m.verifiedFailed = 0
}

// Measure starts timing op and returns a function that records the elapsed
// time when called:
//
//	defer monitor.Measure(telemetry.OpFullAnalysis)()
func (m *Monitor) Measure(op string) func() {
	start := m.now()
	return func() {
		m.RecordLatency(op, m.now().Sub(start))
	}
}

// RecordLatency adds a latency sample for op
func (m *Monitor) RecordLatency(op string, d time.Duration) {
	m.latency.WithLabelValues(op).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[op]
	if !ok {
		w = newWindow(m.windowSize)
		m.windows[op] = w
	}
	w.add(float64(d) / float64(time.Millisecond))
}

// RecordCommentProcessed counts one analyzed comment
func (m *Monitor) RecordCommentProcessed() {
	m.comments.Inc()

	m.mu.Lock()
	m.commentsProcessed++
	m.mu.Unlock()
}

// RecordURLVerification counts one URL verification outcome
func (m *Monitor) RecordURLVerification(verified bool) {
	outcome := "failed"
	if verified {
		outcome = "verified"
	}
	m.verifications.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.urlsVerified++
	if verified {
		m.verifiedOK++
	} else {
		m.verifiedFailed++
	}
}

// ObserveVerification records the latency and outcome of one URL check. Its
// signature matches the verifier's observer hook.
func (m *Monitor) ObserveVerification(result models.VerificationResult, elapsed time.Duration) {
	m.RecordLatency(OpURLVerification, elapsed)
	m.RecordURLVerification(result.Verified)
}

// OperationStats summarizes the rolling window for op
func (m *Monitor) OperationStats(op string) models.OperationStats {
	m.mu.Lock()
	var samples []float64
	if w, ok := m.windows[op]; ok {
		samples = w.values()
	}
	m.mu.Unlock()

	return summarize(op, samples)
}

// Snapshot returns the current counters and per-operation statistics
func (m *Monitor) Snapshot() models.PerformanceStats {
	m.mu.Lock()
	now := m.now()
	session := now.Sub(m.started).Seconds()
	stats := models.PerformanceStats{
		Timestamp:               now,
		SessionDurationSeconds:  round(session, 2),
		TotalCommentsProcessed:  m.commentsProcessed,
		TotalURLsVerified:       m.urlsVerified,
		SuccessfulVerifications: m.verifiedOK,
		FailedVerifications:     m.verifiedFailed,
		Operations:              make(map[string]models.OperationStats, len(m.windows)),
	}
	if m.urlsVerified > 0 {
		stats.VerificationSuccessRate = round(float64(m.verifiedOK)/float64(m.urlsVerified)*100, 2)
	}
	if session > 0 {
		stats.CommentsPerSecond = round(float64(m.commentsProcessed)/session, 2)
	}
	samples := make(map[string][]float64, len(m.windows))
	for op, w := range m.windows {
		samples[op] = w.values()
	}
	m.mu.Unlock()

	for op, values := range samples {
		stats.Operations[op] = summarize(op, values)
	}
	return stats
}

// Reset clears every window and counter and restarts the session clock.
// Prometheus counters are monotonic and are not reset.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Registry exposes the monitor's Prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the monitor's metrics in Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func summarize(op string, samples []float64) models.OperationStats {
	stats := models.OperationStats{Operation: op, SampleSize: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(len(sorted))

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	stdDev := 0.0
	if len(sorted) > 1 {
		variance := 0.0
		for _, s := range sorted {
			variance += (s - mean) * (s - mean)
		}
		stdDev = math.Sqrt(variance / float64(len(sorted)-1))
	}

	stats.AvgLatencyMs = round(mean, 3)
	stats.MedianLatency = round(median, 3)
	stats.MinLatencyMs = round(sorted[0], 3)
	stats.MaxLatencyMs = round(sorted[len(sorted)-1], 3)
	stats.StdDevMs = round(stdDev, 3)
	if mean > 0 {
		stats.ThroughputOpsS = round(1000/mean, 2)
	}
	return stats
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
