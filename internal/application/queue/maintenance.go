package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Maintenance defaults.
const (
	DefaultLeaseExpiry      = 30 * time.Minute
	DefaultRequeueLimit     = 100
	DefaultCleanupRetention = 7 * 24 * time.Hour
	DefaultPurgeRetention   = 90 * 24 * time.Hour
)

// MaintenanceConfig tunes one maintenance invocation.
type MaintenanceConfig struct {
	LeaseExpiry      time.Duration // reclaim horizon for stranded leases
	RequeueLimit     int           // max dead-letter items requeued per run
	CleanupRetention time.Duration // completed-batch retention
	PurgeRetention   time.Duration // exhausted dead-letter retention
}

// MaintenanceResult summarizes one maintenance run.
type MaintenanceResult struct {
	Reset    int `json:"reset"`
	Requeued int `json:"requeued"`
	Cleaned  int `json:"cleaned"`
	Purged   int `json:"purged"`
}

// Maintenance is the periodic janitor: it recovers stranded leases, requeues
// dead-letter candidates, trims completed history, and purges exhausted
// dead-letter rows.
type Maintenance struct {
	store Store
	cfg   MaintenanceConfig
}

// NewMaintenance creates a maintenance runner. Zero config fields get defaults.
func NewMaintenance(store Store, cfg MaintenanceConfig) *Maintenance {
	if cfg.LeaseExpiry <= 0 {
		cfg.LeaseExpiry = DefaultLeaseExpiry
	}
	if cfg.RequeueLimit <= 0 {
		cfg.RequeueLimit = DefaultRequeueLimit
	}
	if cfg.CleanupRetention <= 0 {
		cfg.CleanupRetention = DefaultCleanupRetention
	}
	if cfg.PurgeRetention <= 0 {
		cfg.PurgeRetention = DefaultPurgeRetention
	}
	return &Maintenance{store: store, cfg: cfg}
}

// RunOnce executes one maintenance pass: reset expired leases, requeue DLQ
// candidates, clean completed history, purge exhausted dead letters. A
// failure aborts the remaining steps; already-committed effects stand and the
// next scheduled tick retries the rest.
func (m *Maintenance) RunOnce(ctx context.Context) (MaintenanceResult, error) {
	var result MaintenanceResult

	reset, err := m.store.ResetExpired(ctx, m.cfg.LeaseExpiry)
	if err != nil {
		return result, fmt.Errorf("failed to reset expired batches: %w", err)
	}
	result.Reset = reset

	requeued, err := m.store.RequeueDeadLetters(ctx, m.cfg.RequeueLimit)
	if err != nil {
		return result, fmt.Errorf("failed to requeue dead letter items: %w", err)
	}
	result.Requeued = requeued

	cleaned, err := m.store.CleanupCompleted(ctx, m.cfg.CleanupRetention)
	if err != nil {
		return result, fmt.Errorf("failed to clean up completed batches: %w", err)
	}
	result.Cleaned = cleaned

	purged, err := m.store.PurgeDeadLetters(ctx, m.cfg.PurgeRetention)
	if err != nil {
		return result, fmt.Errorf("failed to purge dead letter items: %w", err)
	}
	result.Purged = purged

	slog.InfoContext(ctx, "maintenance finished",
		"reset", result.Reset,
		"requeued", result.Requeued,
		"cleaned", result.Cleaned,
		"purged", result.Purged)
	return result, nil
}
