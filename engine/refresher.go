package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"

	"go.uber.org/zap"
)

// InitialSettings layers the persisted overrides on top of base. It is the
// only place the one-shot crash target is read from the store. The loaded
// overrides are returned so the refresher can start from them. A load
// failure returns base unchanged alongside the error.
func InitialSettings(ctx context.Context, store SettingsStore, base game.Settings) (game.Settings, config.SettingsOverrides, error) {
	if store == nil {
		return base, config.SettingsOverrides{}, nil
	}
	overrides, err := store.Load(ctx)
	if err != nil {
		return base, config.SettingsOverrides{}, fmt.Errorf("load engine settings: %w", err)
	}
	return base.WithOverrides(overrides), overrides, nil
}

// SettingsRefresher periodically reloads operator settings from the store
// and applies the fields that changed since the previous load. Fields the
// store no longer carries fall back to base.
type SettingsRefresher struct {
	store    SettingsStore
	machine  *Machine
	base     game.Settings
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	last config.SettingsOverrides
}

// NewSettingsRefresher starts from loaded, the overrides already applied at
// startup.
func NewSettingsRefresher(store SettingsStore, machine *Machine, base game.Settings, loaded config.SettingsOverrides, interval time.Duration, logger *zap.Logger) *SettingsRefresher {
	if interval <= 0 {
		interval = config.DefaultSettingsRefreshPeriod
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsRefresher{store: store, machine: machine, base: base, last: loaded, interval: interval, logger: logger}
}

// Run refreshes until ctx is done.
func (r *SettingsRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("⚠️ Settings refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh performs one reload. The stored one-shot target is never applied
// so a consumed override whose clear has not landed yet cannot re-arm, and
// unchanged rows never undo an in-memory admin change whose save failed.
func (r *SettingsRefresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.SettingsIOTimeout)
	defer cancel()

	cur, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load engine settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	base := r.base.Overrides()
	delta := config.SettingsOverrides{
		BettingWindowMs:    changed(r.last.BettingWindowMs, cur.BettingWindowMs, base.BettingWindowMs),
		FlightTickScale:    changed(r.last.FlightTickScale, cur.FlightTickScale, base.FlightTickScale),
		SettleDelayMs:      changed(r.last.SettleDelayMs, cur.SettleDelayMs, base.SettleDelayMs),
		HistorySize:        changed(r.last.HistorySize, cur.HistorySize, base.HistorySize),
		MinCrashMultiplier: changed(r.last.MinCrashMultiplier, cur.MinCrashMultiplier, base.MinCrashMultiplier),
		MaxCrashMultiplier: changed(r.last.MaxCrashMultiplier, cur.MaxCrashMultiplier, base.MaxCrashMultiplier),
		RTPPercent:         changed(r.last.RTPPercent, cur.RTPPercent, base.RTPPercent),
	}
	r.last = cur
	if delta == (config.SettingsOverrides{}) {
		return nil
	}

	r.machine.ApplyOverrides(delta)
	r.logger.Debug("🔄 Settings refreshed")
	return nil
}

// changed returns cur when it differs from last, fallback when the field was
// removed, and nil when nothing moved.
func changed[T comparable](last, cur, fallback *T) *T {
	switch {
	case cur != nil && (last == nil || *last != *cur):
		return cur
	case cur == nil && last != nil:
		return fallback
	}
	return nil
}
