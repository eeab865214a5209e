package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"aviatorServer/game"
)

func newTestController() (*Controller, *harness, *Scheduler) {
	h := newHarness(game.DefaultSettings())
	s := NewScheduler(h.machine, time.Hour, nil)
	return NewController(h.machine, s, h.store, nil), h, s
}

func TestControllerPauseResume(t *testing.T) {
	c, h, s := newTestController()
	ctx := context.Background()

	res, err := c.Handle(ctx, Command{Action: ActionPause})
	if err != nil || !res.Applied || !res.Paused {
		t.Fatalf("pause: %+v, %v", res, err)
	}
	res, _ = c.Handle(ctx, Command{Action: ActionPause})
	if res.Applied {
		t.Error("second pause must be a no-op")
	}
	if !s.IsPaused() {
		t.Error("scheduler not paused")
	}

	res, _ = c.Handle(ctx, Command{Action: ActionResume})
	if !res.Applied || res.Paused {
		t.Errorf("resume: %+v", res)
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if len(h.store.paused) != 3 || h.store.paused[2] {
		t.Errorf("unexpected persisted pause flags: %v", h.store.paused)
	}
}

func TestControllerSetters(t *testing.T) {
	c, h, _ := newTestController()
	ctx := context.Background()
	v := 150.0

	res, err := c.Handle(ctx, Command{Action: ActionSetRTP, Value: &v})
	if err != nil {
		t.Fatalf("setRtp: %v", err)
	}
	if *res.Value != 100 || h.machine.Settings().RTPPercent != 100 {
		t.Errorf("expected rtp clamped to 100, got %v", *res.Value)
	}

	target := 3.5
	if _, err := c.Handle(ctx, Command{Action: ActionSetNextCrashTarget, Value: &target}); err != nil {
		t.Fatalf("setNextCrashTarget: %v", err)
	}
	if got := h.machine.Settings().NextCrashTarget; got == nil || *got != 3.5 {
		t.Error("expected armed override")
	}

	h.store.mu.Lock()
	if len(h.store.rtp) != 1 || h.store.rtp[0] != 100 || len(h.store.targets) != 1 {
		t.Errorf("expected persisted settings, got rtp=%v targets=%v", h.store.rtp, h.store.targets)
	}
	h.store.mu.Unlock()
}

func TestControllerRejectsBadCommands(t *testing.T) {
	c, _, _ := newTestController()
	ctx := context.Background()

	if _, err := c.Handle(ctx, Command{Action: "launchRockets"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if _, err := c.Handle(ctx, Command{Action: ActionSetRTP}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for missing value, got %v", err)
	}
}

func TestControllerForceCrash(t *testing.T) {
	c, h, _ := newTestController()
	ctx := context.Background()

	res, err := c.Handle(ctx, Command{Action: ActionForceCrash})
	if err != nil || res.Applied {
		t.Errorf("force crash outside flight: %+v, %v", res, err)
	}

	h.tick(4 * time.Second)
	h.tick(100 * time.Millisecond)
	res, _ = c.Handle(ctx, Command{Action: ActionForceCrash})
	if !res.Applied || res.State.Phase != game.PhaseCrashed {
		t.Errorf("expected crash, got %+v", res)
	}
}

func TestControllerPersistFailureKeepsChange(t *testing.T) {
	c, h, _ := newTestController()
	h.store.fail = errors.New("db down")
	v := 90.0

	if _, err := c.Handle(context.Background(), Command{Action: ActionSetRTP, Value: &v}); err != nil {
		t.Fatalf("persistence failure must not fail the command: %v", err)
	}
	if h.machine.Settings().RTPPercent != 90 {
		t.Error("in-memory change lost")
	}
}

func TestControllerSavesTargetBeforeArming(t *testing.T) {
	c, h, _ := newTestController()
	armedAtSave := true
	h.store.onSaveTarget = func() {
		armedAtSave = h.machine.Settings().NextCrashTarget != nil
	}

	res, err := c.Handle(context.Background(), Command{Action: ActionSetNextCrashTarget, Value: ptr(3)})
	if err != nil || !res.Applied {
		t.Fatalf("setNextCrashTarget: %+v, %v", res, err)
	}
	if armedAtSave {
		t.Error("the target was armed before it was saved")
	}
	if got := h.machine.Settings().NextCrashTarget; got == nil || *got != 3 {
		t.Errorf("expected target 3 armed, got %v", got)
	}
}
