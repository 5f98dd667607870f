package cache

import (
	"sync"
	"time"
)

// Metrics collects counters for cache activity. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	hits           int64
	misses         int64
	fetchErrors    int64
	stores         int64
	storeFailures  int64
	evictions      int64
	decodeFailures int64

	bytesServed     int64 // bytes returned from cache hits
	bytesDownloaded int64 // bytes fetched from origins
	bytesStored     int64 // encoded bytes written

	startTime    time.Time
	lastHitTime  time.Time
	lastMissTime time.Time
	peakHitRate  float64
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordHit records a cache hit that served n bytes.
func (m *Metrics) RecordHit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits++
	m.bytesServed += int64(n)
	m.lastHitTime = time.Now()
	if rate := m.hitRate(); rate > m.peakHitRate {
		m.peakHitRate = rate
	}
}

// RecordMiss records a successful origin fetch of n bytes.
func (m *Metrics) RecordMiss(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.misses++
	m.bytesDownloaded += int64(n)
	m.lastMissTime = time.Now()
}

// RecordFetchError records a failed origin fetch.
func (m *Metrics) RecordFetchError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErrors++
}

// RecordStore records a successful write of n encoded bytes.
func (m *Metrics) RecordStore(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	m.bytesStored += int64(n)
}

// RecordStoreFailure records an abandoned write.
func (m *Metrics) RecordStoreFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeFailures++
}

// RecordEviction records one evicted entry.
func (m *Metrics) RecordEviction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions++
}

// RecordDecodeFailure records a stored entry that failed to decode.
func (m *Metrics) RecordDecodeFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeFailures++
}

// hitRate is computed over lookups that reached either outcome.
// Caller must hold m.mu.
func (m *Metrics) hitRate() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Hits            int64         `json:"hits"`
	Misses          int64         `json:"misses"`
	FetchErrors     int64         `json:"fetch_errors"`
	Stores          int64         `json:"stores"`
	StoreFailures   int64         `json:"store_failures"`
	Evictions       int64         `json:"evictions"`
	DecodeFailures  int64         `json:"decode_failures"`
	BytesServed     int64         `json:"bytes_served"`
	BytesDownloaded int64         `json:"bytes_downloaded"`
	BytesStored     int64         `json:"bytes_stored"`
	BandwidthSaved  int64         `json:"bandwidth_saved"`
	HitRate         float64       `json:"hit_rate"`
	PeakHitRate     float64       `json:"peak_hit_rate"`
	Uptime          time.Duration `json:"uptime"`
	LastHitTime     time.Time     `json:"last_hit_time"`
	LastMissTime    time.Time     `json:"last_miss_time"`
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		Hits:            m.hits,
		Misses:          m.misses,
		FetchErrors:     m.fetchErrors,
		Stores:          m.stores,
		StoreFailures:   m.storeFailures,
		Evictions:       m.evictions,
		DecodeFailures:  m.decodeFailures,
		BytesServed:     m.bytesServed,
		BytesDownloaded: m.bytesDownloaded,
		BytesStored:     m.bytesStored,
		BandwidthSaved:  m.bytesServed,
		HitRate:         m.hitRate(),
		PeakHitRate:     m.peakHitRate,
		Uptime:          time.Since(m.startTime),
		LastHitTime:     m.lastHitTime,
		LastMissTime:    m.lastMissTime,
	}
}

// Reset zeroes every counter and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits, m.misses, m.fetchErrors = 0, 0, 0
	m.stores, m.storeFailures, m.evictions, m.decodeFailures = 0, 0, 0, 0
	m.bytesServed, m.bytesDownloaded, m.bytesStored = 0, 0, 0
	m.startTime = time.Now()
	m.lastHitTime, m.lastMissTime = time.Time{}, time.Time{}
	m.peakHitRate = 0
}
