package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tlundberg/wishwatch/internal/config"
	"github.com/tlundberg/wishwatch/internal/store"
)

// maintenanceJobTimeout bounds each background job run.
const maintenanceJobTimeout = 5 * time.Minute

// Maintenance runs the periodic housekeeping jobs: history compaction, alert
// pruning, and the degraded-products gauge refresh.
type Maintenance struct {
	cron   *cron.Cron
	engine *Engine
	store  store.Store
	log    *slog.Logger

	compactEvery time.Duration
	pruneEvery   time.Duration
	alertKeep    int
}

// NewMaintenance creates the maintenance runner. Call Start to schedule the
// jobs.
func NewMaintenance(
	e *Engine,
	s store.Store,
	cfg *config.Config,
	log *slog.Logger,
) *Maintenance {
	return &Maintenance{
		cron:         cron.New(),
		engine:       e,
		store:        s,
		log:          log,
		compactEvery: cfg.History.CompactInterval,
		pruneEvery:   cfg.Alerts.PruneInterval,
		alertKeep:    cfg.Alerts.RetentionCount,
	}
}

// Start registers and schedules the jobs.
func (m *Maintenance) Start() error {
	jobs := []struct {
		spec string
		run  func(context.Context)
	}{
		{fmt.Sprintf("@every %s", m.compactEvery), m.compactAll},
		{fmt.Sprintf("@every %s", m.pruneEvery), m.pruneAlerts},
		{"@every 1m", m.syncGauges},
	}

	for _, job := range jobs {
		run := job.run
		if _, err := m.cron.AddFunc(job.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), maintenanceJobTimeout)
			defer cancel()
			run(ctx)
		}); err != nil {
			return fmt.Errorf("scheduling maintenance job %q: %w", job.spec, err)
		}
	}

	m.cron.Start()
	m.log.Info("maintenance jobs scheduled",
		"compact_every", m.compactEvery,
		"prune_every", m.pruneEvery,
	)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) compactAll(ctx context.Context) {
	products, err := m.store.ListProducts(ctx, false)
	if err != nil {
		m.log.Error("history compaction: listing products failed", "error", err)
		return
	}

	for _, p := range products {
		if err := m.engine.CompactHistory(ctx, p.ID); err != nil {
			m.log.Error("history compaction failed", "product_id", p.ID, "error", err)
		}
	}
}

func (m *Maintenance) pruneAlerts(ctx context.Context) {
	removed, err := m.store.PruneAlerts(ctx, m.alertKeep)
	if err != nil {
		m.log.Error("alert pruning failed", "error", err)
		return
	}
	if removed > 0 {
		m.log.Info("pruned alerts", "removed", removed, "keep", m.alertKeep)
	}
}

func (m *Maintenance) syncGauges(ctx context.Context) {
	if err := m.engine.SyncDegradedGauge(ctx); err != nil {
		m.log.Error("degraded gauge refresh failed", "error", err)
	}
}
