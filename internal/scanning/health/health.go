// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// SourceHealth contains health metrics for one scanned source.
type SourceHealth struct {
	SourceID     string       `json:"source_id"`
	Status       SystemStatus `json:"status"`
	HeightLag    uint64       `json:"height_lag"`
	FailedRanges int          `json:"failed_ranges"`
	LastError    string       `json:"last_error,omitempty"`
	StaleSeconds float64      `json:"stale_seconds"`
}
