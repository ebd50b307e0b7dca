// Package telemetry accumulates per-request, per-provider, and
// per-session metrics into a process-wide aggregator and exports
// on-demand snapshots as JSON or Prometheus text.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// HealthStatus is the aggregator's overall system-health verdict.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON renders HealthStatus as its lower-case name.
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// ProviderMetrics is one completed request's outcome, as reported by
// the caller for RecordRequest.
type ProviderMetrics struct {
	Provider     string
	ResponseTime time.Duration
	Tokens       int
	Success      bool
	ErrorType    string // set only when !Success
}

// RoutingMetrics is one routing decision's outcome, as reported by the
// caller for RecordRouting.
type RoutingMetrics struct {
	Scenario     string
	Provider     string
	DecisionTime time.Duration
	FallbackUsed bool
}

// ProviderStats is one provider's aggregated statistics.
type ProviderStats struct {
	Provider           string     `json:"provider"`
	TotalRequests      uint64     `json:"total_requests"`
	SuccessfulRequests uint64     `json:"successful_requests"`
	FailedRequests     uint64     `json:"failed_requests"`
	AvgResponseTimeMS  float64    `json:"avg_response_time_ms"`
	TotalTokens        uint64     `json:"total_tokens"`
	ErrorRate          float64    `json:"error_rate"`
	LastUsed           *time.Time `json:"last_used,omitempty"`
	IsHealthy          bool       `json:"is_healthy"`
}

// RoutingStats aggregates routing-decision metrics.
type RoutingStats struct {
	TotalDecisions        uint64            `json:"total_routing_decisions"`
	FallbackUsed          uint64            `json:"fallback_used"`
	AvgDecisionTimeMS     float64           `json:"avg_decision_time_ms"`
	ScenarioDistribution  map[string]uint64 `json:"scenario_distribution"`
	ProviderDistribution  map[string]uint64 `json:"provider_distribution"`
}

// SessionStats aggregates session lifecycle and cache metrics.
type SessionStats struct {
	ActiveSessions            uint64  `json:"active_sessions"`
	MaxSessions               uint64  `json:"max_sessions"`
	CacheHitRate              float64 `json:"cache_hit_rate"`
	AvgSessionDurationMinutes float64 `json:"avg_session_duration_minutes"`
	TotalSessionsCreated      uint64  `json:"total_sessions_created"`
	TotalSessionsExpired      uint64  `json:"total_sessions_expired"`
}

// SystemHealth is the aggregator's overall health verdict.
type SystemHealth struct {
	Status        HealthStatus `json:"status"`
	UptimeSeconds uint64       `json:"uptime_seconds"`
}

// AggregatedMetrics is a full snapshot produced by GetAggregatedMetrics.
type AggregatedMetrics struct {
	Timestamp          time.Time                `json:"timestamp"`
	TotalRequests      uint64                   `json:"total_requests"`
	SuccessfulRequests uint64                   `json:"successful_requests"`
	FailedRequests     uint64                   `json:"failed_requests"`
	AvgResponseTimeMS  float64                  `json:"avg_response_time_ms"`
	P95ResponseTimeMS  uint64                   `json:"p95_response_time_ms"`
	P99ResponseTimeMS  uint64                   `json:"p99_response_time_ms"`
	TotalTokens        uint64                   `json:"total_tokens"`
	RequestsPerSecond  float64                  `json:"requests_per_second"`
	ErrorRate          float64                  `json:"error_rate"`
	ProviderMetrics    map[string]ProviderStats `json:"provider_metrics"`
	RoutingMetrics     RoutingStats             `json:"routing_metrics"`
	SessionMetrics     SessionStats             `json:"session_metrics"`
	SystemHealth       SystemHealth             `json:"system_health"`
}

const (
	providerResponseTimeCap     = 1000
	errorSampleCap              = 100
	errorSampleRetention        = time.Hour
	lastMinuteWindow            = time.Minute
	unhealthyConsecutiveFailures = 5
)

type providerInternal struct {
	requests, successes, failures uint64
	responseTimesMS                []uint64
	tokens                          uint64
	lastUsed                        *time.Time
	consecutiveFailures             int
}

type routingInternal struct {
	totalDecisions, fallbackCount uint64
	decisionTimesMS                []uint64
	scenarioCounts                  map[string]uint64
	providerCounts                  map[string]uint64
}

type sessionInternal struct {
	activeSessions, maxSessions      uint64
	sessionsCreated, sessionsExpired uint64
	cacheHits, cacheMisses           uint64
	sessionDurations                 []uint64
}

type errorSample struct {
	timestamp time.Time
}

type requestSample struct {
	responseTimeMS uint64
}

// Collector is the process-wide metrics aggregator. The counter state
// and the percentile-history ring are protected by separate mutexes;
// RecordRequest never holds both at once, while GetAggregatedMetrics
// holds the counter mutex for the whole snapshot, so request recording
// waits while a snapshot is computed.
type Collector struct {
	mu sync.Mutex

	totalRequests, successfulRequests, failedRequests uint64
	totalResponseTimeMS                                uint64
	totalTokens                                         uint64
	providers                                           map[string]*providerInternal
	routing                                              routingInternal
	session                                              sessionInternal
	errorSamples                                         []errorSample
	lastMinuteRequests                                   []time.Time

	historyMu      sync.Mutex
	history        []requestSample
	maxHistorySize int

	startTime time.Time
}

// NewCollector returns an empty Collector. maxHistorySize bounds the
// percentile-computation sample ring; 0 defaults to 10000.
func NewCollector(maxHistorySize int) *Collector {
	if maxHistorySize <= 0 {
		maxHistorySize = 10000
	}
	return &Collector{
		providers: make(map[string]*providerInternal),
		routing: routingInternal{
			scenarioCounts: make(map[string]uint64),
			providerCounts: make(map[string]uint64),
		},
		maxHistorySize: maxHistorySize,
		startTime:      time.Now(),
	}
}

// drainHalfOnFull drops the oldest half of s once it exceeds capN,
// bounding memory without ever blocking a writer.
func drainHalfOnFull[T any](s []T, capN int) []T {
	if len(s) <= capN {
		return s
	}
	drop := capN / 2
	out := make([]T, len(s)-drop)
	copy(out, s[drop:])
	return out
}

// RecordRequest folds one completed request into the aggregator.
func (c *Collector) RecordRequest(pm ProviderMetrics) {
	responseMS := uint64(pm.ResponseTime.Milliseconds())
	now := time.Now()

	c.mu.Lock()
	c.totalRequests++
	if pm.Success {
		c.successfulRequests++
	} else {
		c.failedRequests++
	}
	c.totalResponseTimeMS += responseMS
	c.totalTokens += uint64(pm.Tokens)

	p, ok := c.providers[pm.Provider]
	if !ok {
		p = &providerInternal{}
		c.providers[pm.Provider] = p
	}
	p.requests++
	if pm.Success {
		p.successes++
		p.consecutiveFailures = 0
	} else {
		p.failures++
		p.consecutiveFailures++
	}
	p.responseTimesMS = drainHalfOnFull(append(p.responseTimesMS, responseMS), providerResponseTimeCap)
	p.tokens += uint64(pm.Tokens)
	lastUsed := now
	p.lastUsed = &lastUsed

	if !pm.Success && pm.ErrorType != "" {
		c.errorSamples = drainHalfOnFull(append(c.errorSamples, errorSample{timestamp: now}), errorSampleCap)
	}
	c.lastMinuteRequests = append(c.lastMinuteRequests, now)
	c.mu.Unlock()

	c.historyMu.Lock()
	c.history = drainHalfOnFull(append(c.history, requestSample{responseTimeMS: responseMS}), c.maxHistorySize)
	c.historyMu.Unlock()
}

// RecordRouting folds one routing decision into the aggregator.
func (c *Collector) RecordRouting(rm RoutingMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.routing.totalDecisions++
	c.routing.decisionTimesMS = drainHalfOnFull(
		append(c.routing.decisionTimesMS, uint64(rm.DecisionTime.Milliseconds())), providerResponseTimeCap)
	if rm.FallbackUsed {
		c.routing.fallbackCount++
	}
	c.routing.scenarioCounts[rm.Scenario]++
	c.routing.providerCounts[rm.Provider]++
}

// RecordSessionCreated increments the session-created counter.
func (c *Collector) RecordSessionCreated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.sessionsCreated++
}

// RecordSessionExpired increments the session-expired counter and
// records its duration for the running average.
func (c *Collector) RecordSessionExpired(durationMinutes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.sessionsExpired++
	c.session.sessionDurations = drainHalfOnFull(append(c.session.sessionDurations, durationMinutes), providerResponseTimeCap)
}

// RecordCacheHit increments the session cache-hit counter.
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.cacheHits++
}

// RecordCacheMiss increments the session cache-miss counter.
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.cacheMisses++
}

// UpdateActiveSessions sets the current/max active session gauges.
func (c *Collector) UpdateActiveSessions(active, maxSessions uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.activeSessions = active
	c.session.maxSessions = maxSessions
}

func (c *Collector) pruneLastMinuteLocked(now time.Time) {
	cutoff := now.Add(-lastMinuteWindow)
	i := 0
	for i < len(c.lastMinuteRequests) && c.lastMinuteRequests[i].Before(cutoff) {
		i++
	}
	c.lastMinuteRequests = c.lastMinuteRequests[i:]
}

func (c *Collector) pruneErrorSamplesLocked(now time.Time) {
	cutoff := now.Add(-errorSampleRetention)
	i := 0
	for i < len(c.errorSamples) && c.errorSamples[i].timestamp.Before(cutoff) {
		i++
	}
	c.errorSamples = c.errorSamples[i:]
}

func percentile(sorted []uint64, p float64) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func healthStatus(errorRate, avgResponseTimeMS float64) HealthStatus {
	switch {
	case errorRate >= 50 || avgResponseTimeMS > 5000:
		return Unhealthy
	case errorRate >= 5 || avgResponseTimeMS > 2000:
		return Degraded
	default:
		return Healthy
	}
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetAggregatedMetrics computes a full snapshot on demand: percentiles
// over the history ring, RPS from the last-minute window, per-provider
// rollups, cache hit rate, and the overall health verdict.
func (c *Collector) GetAggregatedMetrics() AggregatedMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.pruneLastMinuteLocked(now)
	c.pruneErrorSamplesLocked(now)

	c.historyMu.Lock()
	responseTimes := make([]uint64, len(c.history))
	for i, s := range c.history {
		responseTimes[i] = s.responseTimeMS
	}
	c.historyMu.Unlock()
	sort.Slice(responseTimes, func(i, j int) bool { return responseTimes[i] < responseTimes[j] })

	var avgResponseTime float64
	if c.totalRequests > 0 {
		avgResponseTime = float64(c.totalResponseTimeMS) / float64(c.totalRequests)
	}

	var errorRate float64
	if c.totalRequests > 0 {
		errorRate = float64(c.failedRequests) / float64(c.totalRequests) * 100
	}

	providerStats := make(map[string]ProviderStats, len(c.providers))
	for name, p := range c.providers {
		var provErrRate, avgProvResp float64
		if p.requests > 0 {
			provErrRate = float64(p.failures) / float64(p.requests) * 100
			var sum uint64
			for _, rt := range p.responseTimesMS {
				sum += rt
			}
			avgProvResp = float64(sum) / float64(p.requests)
		}
		providerStats[name] = ProviderStats{
			Provider:           name,
			TotalRequests:      p.requests,
			SuccessfulRequests: p.successes,
			FailedRequests:     p.failures,
			AvgResponseTimeMS:  avgProvResp,
			TotalTokens:        p.tokens,
			ErrorRate:          provErrRate,
			LastUsed:           p.lastUsed,
			IsHealthy:          p.consecutiveFailures < unhealthyConsecutiveFailures,
		}
	}

	var avgDecision float64
	if c.routing.totalDecisions > 0 {
		var sum uint64
		for _, d := range c.routing.decisionTimesMS {
			sum += d
		}
		avgDecision = float64(sum) / float64(c.routing.totalDecisions)
	}

	totalCacheOps := c.session.cacheHits + c.session.cacheMisses
	var cacheHitRate float64
	if totalCacheOps > 0 {
		cacheHitRate = roundTo2(float64(c.session.cacheHits) / float64(totalCacheOps) * 100)
	}

	var avgSessionDuration float64
	if len(c.session.sessionDurations) > 0 {
		var sum uint64
		for _, d := range c.session.sessionDurations {
			sum += d
		}
		avgSessionDuration = float64(sum) / float64(len(c.session.sessionDurations))
	}

	return AggregatedMetrics{
		Timestamp:          now,
		TotalRequests:      c.totalRequests,
		SuccessfulRequests: c.successfulRequests,
		FailedRequests:     c.failedRequests,
		AvgResponseTimeMS:  avgResponseTime,
		P95ResponseTimeMS:  percentile(responseTimes, 0.95),
		P99ResponseTimeMS:  percentile(responseTimes, 0.99),
		TotalTokens:        c.totalTokens,
		RequestsPerSecond:  float64(len(c.lastMinuteRequests)) / 60.0,
		ErrorRate:          errorRate,
		ProviderMetrics:    providerStats,
		RoutingMetrics: RoutingStats{
			TotalDecisions:       c.routing.totalDecisions,
			FallbackUsed:         c.routing.fallbackCount,
			AvgDecisionTimeMS:    avgDecision,
			ScenarioDistribution: copyCounts(c.routing.scenarioCounts),
			ProviderDistribution: copyCounts(c.routing.providerCounts),
		},
		SessionMetrics: SessionStats{
			ActiveSessions:            c.session.activeSessions,
			MaxSessions:               c.session.maxSessions,
			CacheHitRate:              cacheHitRate,
			AvgSessionDurationMinutes: avgSessionDuration,
			TotalSessionsCreated:      c.session.sessionsCreated,
			TotalSessionsExpired:      c.session.sessionsExpired,
		},
		SystemHealth: SystemHealth{
			Status:        healthStatus(errorRate, avgResponseTime),
			UptimeSeconds: uint64(now.Sub(c.startTime).Seconds()),
		},
	}
}

// ExportJSON renders the current snapshot as indented JSON.
func (c *Collector) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c.GetAggregatedMetrics(), "", "  ")
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s gauge\n%s %.2f\n\n", name, help, name, name, value)
}

// ExportPrometheus renders m as Prometheus text exposition format, one
// HELP/TYPE/sample group per metric, hand-built rather than through a
// client library so the core carries no Prometheus dependency.
func ExportPrometheus(m AggregatedMetrics) string {
	var b strings.Builder

	writeCounter(&b, "terraphim_requests_total", "Total number of requests", m.TotalRequests)
	writeCounter(&b, "terraphim_requests_successful_total", "Total successful requests", m.SuccessfulRequests)
	writeCounter(&b, "terraphim_requests_failed_total", "Total failed requests", m.FailedRequests)
	writeGauge(&b, "terraphim_response_time_ms", "Average response time in milliseconds", m.AvgResponseTimeMS)
	writeCounter(&b, "terraphim_response_time_p95_ms", "95th percentile response time in milliseconds", m.P95ResponseTimeMS)
	writeCounter(&b, "terraphim_response_time_p99_ms", "99th percentile response time in milliseconds", m.P99ResponseTimeMS)
	writeCounter(&b, "terraphim_tokens_total", "Total tokens processed", m.TotalTokens)
	writeGauge(&b, "terraphim_requests_per_second", "Requests per second", m.RequestsPerSecond)
	writeGauge(&b, "terraphim_error_rate", "Error rate percentage", m.ErrorRate)

	providerNames := make([]string, 0, len(m.ProviderMetrics))
	for name := range m.ProviderMetrics {
		providerNames = append(providerNames, name)
	}
	sort.Strings(providerNames)
	for _, name := range providerNames {
		p := m.ProviderMetrics[name]
		fmt.Fprintf(&b, "# HELP terraphim_provider_requests_total Total requests for provider %s\n# TYPE terraphim_provider_requests_total counter\nterraphim_provider_requests_total{provider=%q} %d\n\n",
			name, name, p.TotalRequests)
		fmt.Fprintf(&b, "# HELP terraphim_provider_response_time_ms Average response time for provider %s\n# TYPE terraphim_provider_response_time_ms gauge\nterraphim_provider_response_time_ms{provider=%q} %.2f\n\n",
			name, name, p.AvgResponseTimeMS)
		fmt.Fprintf(&b, "# HELP terraphim_provider_error_rate Error rate for provider %s\n# TYPE terraphim_provider_error_rate gauge\nterraphim_provider_error_rate{provider=%q} %.2f\n\n",
			name, name, p.ErrorRate)
	}

	writeCounter(&b, "terraphim_active_sessions", "Current number of active sessions", m.SessionMetrics.ActiveSessions)
	writeGauge(&b, "terraphim_session_cache_hit_rate", "Session cache hit rate percentage", m.SessionMetrics.CacheHitRate)
	writeCounter(&b, "terraphim_uptime_seconds", "System uptime in seconds", m.SystemHealth.UptimeSeconds)

	return b.String()
}
