package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks loop throughput and latency for the status API.
// Prometheus counters are updated alongside (see prometheus.go).
type SystemMetrics struct {
	// Exchange ts -> local processing time of each ticker.
	TickLatency *LatencyHistogram
	// Signal -> order frame written.
	OrderLatency *LatencyHistogram

	ticksProcessed   atomic.Uint64
	signalsGenerated atomic.Uint64
	ordersSent       atomic.Uint64
	orderErrors      atomic.Uint64
	decodeErrors     atomic.Uint64
	reconnects       atomic.Uint64

	started time.Time
}

// LatencyHistogram keeps the most recent samples in a sliding window and
// computes stats lazily.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	next        int
	full        bool
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		TickLatency:  NewLatencyHistogram(2000),
		OrderLatency: NewLatencyHistogram(200),
		started:      time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window of size samples.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, size),
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds, overwriting the oldest when full.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = latencyMs
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
	h.dirty = true
}

// RecordDuration converts d to milliseconds and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles of the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cachedStats
	}

	n := h.next
	if h.full {
		n = len(h.samples)
	}
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples[:n])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n-1)*0.95)],
		P99:   sorted[int(float64(n-1)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// RecordTick counts one processed ticker and its feed latency.
func (m *SystemMetrics) RecordTick(instID string, latency time.Duration) {
	m.ticksProcessed.Add(1)
	m.TickLatency.RecordDuration(latency)
	TicksTotal.WithLabelValues(instID).Inc()
	TickLatencySeconds.Observe(latency.Seconds())
}

// RecordSignal counts a flash-crash signal.
func (m *SystemMetrics) RecordSignal(instID string) {
	m.signalsGenerated.Add(1)
	SignalsTotal.WithLabelValues(instID).Inc()
}

// RecordOrder counts an order frame written for side.
func (m *SystemMetrics) RecordOrder(instID, side string, sinceSignal time.Duration) {
	m.ordersSent.Add(1)
	m.OrderLatency.RecordDuration(sinceSignal)
	OrdersTotal.WithLabelValues(instID, side).Inc()
}

// RecordOrderError counts an order that could not be written.
func (m *SystemMetrics) RecordOrderError(side string) {
	m.orderErrors.Add(1)
	OrderErrorsTotal.WithLabelValues(side).Inc()
}

// RecordDecodeError counts a frame that failed to decode on channel.
func (m *SystemMetrics) RecordDecodeError(channel string) {
	m.decodeErrors.Add(1)
	DecodeErrorsTotal.WithLabelValues(channel).Inc()
}

// RecordRejection counts a risk gate rejection.
func (m *SystemMetrics) RecordRejection(reason string) {
	RiskRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordReconnect counts a session restart.
func (m *SystemMetrics) RecordReconnect() {
	m.reconnects.Add(1)
	ReconnectsTotal.Inc()
}

// SetOpenPositions exports the current position count.
func (m *SystemMetrics) SetOpenPositions(n int) {
	OpenPositions.Set(float64(n))
}

// MetricsSnapshot is a point-in-time view for the status API.
type MetricsSnapshot struct {
	TickLatency      LatencyStats `json:"tick_latency_ms"`
	OrderLatency     LatencyStats `json:"order_latency_ms"`
	TicksProcessed   uint64       `json:"ticks_processed"`
	SignalsGenerated uint64       `json:"signals_generated"`
	OrdersSent       uint64       `json:"orders_sent"`
	OrderErrors      uint64       `json:"order_errors"`
	DecodeErrors     uint64       `json:"decode_errors"`
	Reconnects       uint64       `json:"reconnects"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	Uptime           string       `json:"uptime"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		TickLatency:      m.TickLatency.Stats(),
		OrderLatency:     m.OrderLatency.Stats(),
		TicksProcessed:   m.ticksProcessed.Load(),
		SignalsGenerated: m.signalsGenerated.Load(),
		OrdersSent:       m.ordersSent.Load(),
		OrderErrors:      m.orderErrors.Load(),
		DecodeErrors:     m.decodeErrors.Load(),
		Reconnects:       m.reconnects.Load(),
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		Uptime:           time.Since(m.started).Truncate(time.Second).String(),
		Timestamp:        time.Now(),
	}
}
