package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service records.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec
	GRPCRequestsTotal   CounterVec

	// Scanning
	SourceScansTotal    CounterVec
	SourceScanDuration  HistogramVec
	CacheLookupsTotal   CounterVec
	MatchesTotal        CounterVec
	TicksTotal          CounterVec
	TickDuration        HistogramVec
	TickAssetFailures   CounterVec
	RegistryAssets      GaugeVec
	ActiveChatSessions  GaugeVec

	// Enforcement and collaborators
	EnforcementsTotal   CounterVec
	LLMRequestsTotal    CounterVec
	LLMRequestDuration  HistogramVec
	AlertsDelivered     CounterVec
	LedgerRequestsTotal CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScanDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultTickDurationBuckets = []float64{.5, 1, 5, 10, 30, 60, 120, 300}
	DefaultLLMDurationBuckets  = []float64{.5, 1, 2, 5, 10, 30, 60}
)

// NewAppMetrics registers every metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests")
	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC calls", "service", "method", "code")

	m.SourceScansTotal = collector.RegisterCounter("source_scans_total", "Content source searches", "source", "status")
	m.SourceScanDuration = collector.RegisterHistogram("source_scan_duration_seconds", "Content source search duration", DefaultScanDurationBuckets, "source")
	m.CacheLookupsTotal = collector.RegisterCounter("scan_cache_lookups_total", "Scan cache lookups", "source", "result")
	m.MatchesTotal = collector.RegisterCounter("matches_total", "Candidates at or above the similarity threshold", "source")
	m.TicksTotal = collector.RegisterCounter("scheduler_ticks_total", "Scheduler ticks run")
	m.TickDuration = collector.RegisterHistogram("scheduler_tick_duration_seconds", "Scheduler tick duration", DefaultTickDurationBuckets)
	m.TickAssetFailures = collector.RegisterCounter("scheduler_asset_failures_total", "Per-asset scan failures")
	m.RegistryAssets = collector.RegisterGauge("registry_assets", "Assets under monitoring")
	m.ActiveChatSessions = collector.RegisterGauge("chat_sessions_active", "Open intake sessions")

	m.EnforcementsTotal = collector.RegisterCounter("enforcements_total", "Enforcement actions", "tone", "outcome")
	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "Message generation requests", "model", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "Message generation duration", DefaultLLMDurationBuckets, "model")
	m.AlertsDelivered = collector.RegisterCounter("alerts_total", "Alerts handed to a sink", "sink", "status")
	m.LedgerRequestsTotal = collector.RegisterCounter("ledger_requests_total", "Registration service calls", "operation", "status")

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSourceScan records one content source search.
func (m *AppMetrics) ObserveSourceScan(source string, d time.Duration, err error) {
	m.SourceScansTotal.WithLabelValues(source, status(err)).Inc()
	m.SourceScanDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncCacheLookup records a scan cache hit or miss.
func (m *AppMetrics) IncCacheLookup(source string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(source, result).Inc()
}

// AddMatches counts retained candidates.
func (m *AppMetrics) AddMatches(source string, n int) {
	if n > 0 {
		m.MatchesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveTick records a finished scheduler tick.
func (m *AppMetrics) ObserveTick(d time.Duration, _ int, failures int) {
	m.TicksTotal.WithLabelValues().Inc()
	m.TickDuration.WithLabelValues().Observe(d.Seconds())
	if failures > 0 {
		m.TickAssetFailures.WithLabelValues().Add(float64(failures))
	}
}

// SetRegistrySize records how many assets are monitored.
func (m *AppMetrics) SetRegistrySize(n int) {
	m.RegistryAssets.WithLabelValues().Set(float64(n))
}

// ObserveEnforcement records an enforcement outcome.
func (m *AppMetrics) ObserveEnforcement(tone, outcome string) {
	m.EnforcementsTotal.WithLabelValues(tone, outcome).Inc()
}

// ObserveLLMCall records a message generation request.
func (m *AppMetrics) ObserveLLMCall(model string, d time.Duration, err error) {
	m.LLMRequestsTotal.WithLabelValues(model, status(err)).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveAlert records an alert delivery attempt.
func (m *AppMetrics) ObserveAlert(sink string, err error) {
	m.AlertsDelivered.WithLabelValues(sink, status(err)).Inc()
}

// ObserveLedgerCall records a registration service call.
func (m *AppMetrics) ObserveLedgerCall(operation string, err error) {
	m.LedgerRequestsTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordHTTPRequest records a served request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordGRPCRequest records a completed gRPC call.
func (m *AppMetrics) RecordGRPCRequest(service, method, code string, _ time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
}

// SetActiveSessions reports the number of open intake sessions.
func (m *AppMetrics) SetActiveSessions(n int) {
	m.ActiveChatSessions.WithLabelValues().Set(float64(n))
}
