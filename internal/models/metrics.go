package models

import "time"

// SystemMetrics is the admin summary built from in-process counters. The
// Prometheus endpoint carries the full histograms.
type SystemMetrics struct {
	HTTP        TrafficStats    `json:"http"`
	Database    TrafficStats    `json:"database"`
	Cache       CacheStats      `json:"cache"`
	Evaluations EvaluationStats `json:"evaluations"`
	Goroutines  int             `json:"goroutines"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// TrafficStats counts calls and their mean latency.
type TrafficStats struct {
	Count    uint64  `json:"count"`
	InFlight int64   `json:"in_flight,omitempty"`
	MeanMs   float64 `json:"mean_ms"`
}

type CacheStats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

type EvaluationStats struct {
	Submitted            uint64 `json:"submitted"`
	DuplicatesSuppressed uint64 `json:"duplicates_suppressed"`
}
