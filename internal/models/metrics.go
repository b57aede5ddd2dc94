package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	Proposals                map[string]uint64 `json:"proposals"`
	AlertsDelivered          uint64            `json:"alerts_delivered"`
	AlertsFailed             uint64            `json:"alerts_failed"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
