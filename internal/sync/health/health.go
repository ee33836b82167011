// Package health reports the sync layer's operational state, aggregating
// feed connectivity, polling freshness, and mutation backlog into a single
// status.
package health

// SystemStatus represents the overall health state of the sync layer.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full sync health report.
type Report struct {
	Status            SystemStatus `json:"status"`
	FeedConnected     bool         `json:"feed_connected"`
	ReconnectAttempts int          `json:"reconnect_attempts"`
	PendingMutations  int          `json:"pending_mutations"`
	RefreshAgeSecs    float64      `json:"refresh_age_secs"`
	StoreReachable    bool         `json:"store_reachable"`
}
