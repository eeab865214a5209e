package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"
)

func TestInitialSettings(t *testing.T) {
	rtp, target, paused := 92.0, 4.0, true
	store := &fakeStore{overrides: config.SettingsOverrides{RTPPercent: &rtp, NextCrashTarget: &target, Paused: &paused}}

	s, loaded, err := InitialSettings(context.Background(), store, game.DefaultSettings())
	if err != nil {
		t.Fatalf("InitialSettings failed: %v", err)
	}
	if s.RTPPercent != 92 || s.NextCrashTarget == nil || *s.NextCrashTarget != 4 {
		t.Errorf("unexpected settings: %+v", s)
	}
	if loaded.Paused == nil || !*loaded.Paused {
		t.Error("expected the stored pause flag to be returned")
	}

	store.fail = errors.New("db down")
	s, _, err = InitialSettings(context.Background(), store, game.DefaultSettings())
	if err == nil || s.RTPPercent != 97 {
		t.Errorf("expected defaults and an error, got %+v, %v", s, err)
	}
}

func TestSettingsRefresherAppliesOperatorFields(t *testing.T) {
	h := newHarness(game.DefaultSettings())
	rtp, target, size := 90.0, 9.0, 5
	h.store.overrides = config.SettingsOverrides{RTPPercent: &rtp, NextCrashTarget: &target, HistorySize: &size}

	r := NewSettingsRefresher(h.store, h.machine, game.DefaultSettings(), config.SettingsOverrides{}, 0, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	s := h.machine.Settings()
	if s.RTPPercent != 90 || s.HistorySize != 5 {
		t.Errorf("operator fields not applied: %+v", s)
	}
	if s.NextCrashTarget != nil {
		t.Error("refresh must never arm the one-shot target")
	}

	h.store.fail = errors.New("db down")
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("expected refresh error")
	}
	if h.machine.Settings().RTPPercent != 90 {
		t.Error("failed refresh must keep the current snapshot")
	}
}

func TestSettingsRefresherKeepsUnsavedAdminChange(t *testing.T) {
	h := newHarness(game.DefaultSettings())
	stored := 97.0
	h.store.overrides = config.SettingsOverrides{RTPPercent: &stored}
	_, loaded, err := InitialSettings(context.Background(), h.store, game.DefaultSettings())
	if err != nil {
		t.Fatalf("InitialSettings failed: %v", err)
	}
	r := NewSettingsRefresher(h.store, h.machine, game.DefaultSettings(), loaded, 0, nil)

	h.store.saveFail = errors.New("db down")
	c := NewController(h.machine, NewScheduler(h.machine, time.Hour, nil), h.store, nil)
	if _, err := c.Handle(context.Background(), Command{Action: ActionSetRTP, Value: ptr(50)}); err != nil {
		t.Fatalf("setRtp failed: %v", err)
	}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := h.machine.Settings().RTPPercent; got != 50 {
		t.Fatalf("refresh of an unchanged row reverted rtp to %v", got)
	}

	other := 80.0
	h.store.mu.Lock()
	h.store.overrides.RTPPercent = &other
	h.store.mu.Unlock()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := h.machine.Settings().RTPPercent; got != 80 {
		t.Errorf("expected the newly stored rtp 80, got %v", got)
	}

	h.store.mu.Lock()
	h.store.overrides.RTPPercent = nil
	h.store.mu.Unlock()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := h.machine.Settings().RTPPercent; got != 97 {
		t.Errorf("a removed override must fall back to the base rtp, got %v", got)
	}
}
