package interfaces

import "context"

type HealthStatus struct {
	Status     string `json:"status"`
	NodeID     string `json:"node_id"`
	Uptime     uint64 `json:"uptime_seconds"`
	TxPoolSize int    `json:"txpool_size"`
	LogLength  uint64 `json:"log_length"`
	Peers      int    `json:"peers"`

	System *SystemStats `json:"system,omitempty"`
}

// SystemStats is a point-in-time view of the host the node runs on.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent,omitempty"`
}

type HealthService interface {
	Check(ctx context.Context) (*HealthStatus, error)
}
