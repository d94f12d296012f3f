package models

import "time"

// SystemMetrics is a point-in-time summary of the process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64          `json:"cacheHitRatio"`
	CacheHits                uint64           `json:"cacheHits"`
	CacheMisses              uint64           `json:"cacheMisses"`
	RequestsTotal            uint64           `json:"requestsTotal"`
	AverageRequestDurationMs float64          `json:"averageRequestDurationMs"`
	DBQueryCount             uint64           `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64          `json:"averageDbQueryDurationMs"`
	OutboxProcessed          uint64           `json:"outboxProcessed"`
	OutboxFailed             uint64           `json:"outboxFailed"`
	OutboxBacklog            map[string]int64 `json:"outboxBacklog"`
	Goroutines               int              `json:"goroutines"`
	GeneratedAt              time.Time        `json:"generatedAt"`
}
