package service

import (
	"context"
	"time"

	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/mempool"
	"github.com/mezonai/syncgate/store"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type HealthServiceImpl struct {
	mempool   *mempool.Mempool
	logs      store.LogStore
	peers     func() int
	nodeID    string
	dataDir   string
	startedAt time.Time
}

// NewHealthService reports on mp and logs. peers may be nil when the node
// runs without a p2p layer.
func NewHealthService(mp *mempool.Mempool, logs store.LogStore, peers func() int, nodeID string) *HealthServiceImpl {
	return &HealthServiceImpl{mempool: mp, logs: logs, peers: peers, nodeID: nodeID, startedAt: time.Now()}
}

// WithDataDir adds usage of the volume holding dir to the system stats.
func (hs *HealthServiceImpl) WithDataDir(dir string) *HealthServiceImpl {
	hs.dataDir = dir
	return hs
}

func (hs *HealthServiceImpl) Check(ctx context.Context) (*interfaces.HealthStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := hs.mempool.Resync(); err != nil {
		return nil, err
	}
	status := &interfaces.HealthStatus{
		Status:     "ok",
		NodeID:     hs.nodeID,
		Uptime:     uint64(time.Since(hs.startedAt).Seconds()),
		TxPoolSize: hs.mempool.Len(),
		LogLength:  hs.logs.Len(),
		System:     hs.systemStats(ctx),
	}
	if hs.peers != nil {
		status.Peers = hs.peers()
	}
	return status, nil
}

// systemStats returns nil when the host cannot be sampled.
func (hs *HealthServiceImpl) systemStats(ctx context.Context) *interfaces.SystemStats {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(cpuPercents) == 0 {
		return nil
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	stats := &interfaces.SystemStats{
		CPUPercent:    cpuPercents[0],
		MemoryPercent: vm.UsedPercent,
	}
	if hs.dataDir != "" {
		if usage, err := disk.UsageWithContext(ctx, hs.dataDir); err == nil {
			stats.DiskPercent = usage.UsedPercent
		}
	}
	return stats
}
