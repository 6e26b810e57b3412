package models

import "time"

// SystemMetrics is a point-in-time aggregate exposed on the admin metrics
// endpoint, next to the raw Prometheus scrape.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ConflictChecksTotal      uint64    `json:"conflict_checks_total"`
	ConflictChecksBlocked    uint64    `json:"conflict_checks_blocked"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
