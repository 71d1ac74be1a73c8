package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lexiqai/voiceapi/internal/resilience"
)

var (
	// Session metrics
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voiceapi_active_sessions",
		Help: "Number of open streaming sessions",
	}, []string{"kind"}) // kind: "asr" or "tts"

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_sessions_total",
		Help: "Total number of streaming sessions accepted",
	}, []string{"kind"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voiceapi_session_duration_seconds",
		Help:    "Duration of streaming sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"kind"})

	// Engine metrics
	streamAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_stream_allocations_total",
		Help: "Engine stream allocations by outcome",
	}, []string{"engine", "status"})

	engineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_engine_errors_total",
		Help: "Engine read/write errors treated as end of stream",
	}, []string{"engine", "op"})

	interruptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceapi_tts_interrupts_total",
		Help: "Synthesis streams closed because new text arrived",
	})

	// Traffic metrics
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voiceapi_tts_frames_total",
		Help: "Binary audio frames sent to synthesis clients",
	})

	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_results_total",
		Help: "Structured results sent to clients",
	}, []string{"kind", "finished"})

	generateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voiceapi_tts_generate_latency_seconds",
		Help:    "Time until the one-shot synthesis stream is ready",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voiceapi_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voiceapi_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single streaming session
type Metrics struct {
	kind      string
	startTime time.Time
	endOnce   sync.Once
}

// NewSessionMetrics creates a new metrics tracker for a session of the given kind
func NewSessionMetrics(kind string) *Metrics {
	return &Metrics{
		kind:      kind,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.WithLabelValues(m.kind).Inc()
	sessionsTotal.WithLabelValues(m.kind).Inc()
}

// RecordSessionEnd records the end of a session; repeated calls are ignored
func (m *Metrics) RecordSessionEnd() {
	m.endOnce.Do(func() {
		activeSessions.WithLabelValues(m.kind).Dec()
		sessionDuration.WithLabelValues(m.kind).Observe(time.Since(m.startTime).Seconds())
	})
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordFrame records one binary frame sent to the client
func (m *Metrics) RecordFrame(bytes int) {
	framesSent.Inc()
	audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
}

// RecordResult records a structured result sent to the client
func (m *Metrics) RecordResult(finished bool) {
	label := "false"
	if finished {
		label = "true"
	}
	resultsTotal.WithLabelValues(m.kind, label).Inc()
}

// RecordInterrupt records a synthesis stream replaced by new text
func (m *Metrics) RecordInterrupt() {
	interruptsTotal.Inc()
}

// RecordStreamAllocation records the outcome of an engine stream allocation
func RecordStreamAllocation(engine string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	streamAllocations.WithLabelValues(engine, status).Inc()
}

// RecordEngineError records an engine error that ended a stream
func RecordEngineError(engine, op string) {
	engineErrors.WithLabelValues(engine, op).Inc()
}

// ObserveGenerateLatency records how long a one-shot synthesis took to start
func ObserveGenerateLatency(d time.Duration) {
	generateLatency.Observe(d.Seconds())
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

// ObserveCircuitBreaker exports breaker transitions; it matches
// resilience.StateObserver
func ObserveCircuitBreaker(name string, state resilience.CircuitState, failed bool) {
	UpdateCircuitBreakerState(name, int(state))
	if failed {
		IncrementCircuitBreakerFailures(name)
	}
}
