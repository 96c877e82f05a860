package core

// scheduler.go provides background maintenance for the widget registry.
//
// Widgets live only in memory and are normally destroyed when their page
// goes away. Pages that are closed without telling the server leave widgets
// behind, so the janitor periodically destroys widgets that have been idle
// longer than the configured TTL, releasing their download handles.

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig holds configuration for the idle-widget janitor.
// All fields have sensible defaults if zero values are provided.
type JanitorConfig struct {
	IdleTTL       time.Duration // Destroy widgets idle this long (default: 2h)
	CheckInterval time.Duration // How often to sweep (default: 5m)

	// OnSweep, if set, receives the ids destroyed by each sweep.
	OnSweep func(ids []string)
}

func (c JanitorConfig) withDefaults() JanitorConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = 2 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	return c
}

// RunJanitor periodically sweeps idle widgets until ctx is cancelled.
func (r *Registry) RunJanitor(ctx context.Context, cfg JanitorConfig) {
	cfg = cfg.withDefaults()

	slog.Info("widget janitor started",
		"idle_ttl", cfg.IdleTTL.String(),
		"interval", cfg.CheckInterval.String(),
	)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("widget janitor stopped")
			return
		case now := <-ticker.C:
			r.runSweep(now, cfg.IdleTTL, cfg.OnSweep)
		}
	}
}

// runSweep performs one sweep cycle.
func (r *Registry) runSweep(now time.Time, idle time.Duration, onSweep func([]string)) {
	start := time.Now()
	expired := r.Sweep(now, idle)
	if len(expired) == 0 {
		slog.Debug("widget sweep found nothing idle")
		return
	}
	if onSweep != nil {
		onSweep(expired)
	}

	slog.Info("destroyed idle widgets",
		"count", len(expired),
		"remaining", r.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
