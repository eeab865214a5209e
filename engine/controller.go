package engine

import (
	"context"
	"fmt"
	"math"

	"aviatorServer/game"

	"go.uber.org/zap"
)

const (
	ActionPause              = "pause"
	ActionResume             = "resume"
	ActionForceCrash         = "forceCrash"
	ActionSetRTP             = "setRtp"
	ActionSetNextCrashTarget = "setNextCrashTarget"
)

// Command is an already-authorized admin instruction.
type Command struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
}

// CommandResult reports what a command changed.
type CommandResult struct {
	Action  string            `json:"action"`
	Applied bool              `json:"applied"`
	Value   *float64          `json:"value,omitempty"`
	Paused  bool              `json:"paused"`
	State   game.StatePayload `json:"state"`
}

// Controller applies admin commands to the machine and scheduler and
// persists them. Persistence failures are logged; the in-memory change stands.
type Controller struct {
	machine   *Machine
	scheduler *Scheduler
	store     SettingsStore
	logger    *zap.Logger
}

func NewController(machine *Machine, scheduler *Scheduler, store SettingsStore, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{machine: machine, scheduler: scheduler, store: store, logger: logger}
}

func (c *Controller) Handle(ctx context.Context, cmd Command) (CommandResult, error) {
	res := CommandResult{Action: cmd.Action}

	switch cmd.Action {
	case ActionPause:
		res.Applied = c.scheduler.Pause()
		c.persist(ctx, cmd.Action, func(ctx context.Context) error { return c.store.SavePaused(ctx, true) })

	case ActionResume:
		res.Applied = c.scheduler.Resume()
		c.persist(ctx, cmd.Action, func(ctx context.Context) error { return c.store.SavePaused(ctx, false) })

	case ActionForceCrash:
		res.Applied = c.machine.ForceCrash()

	case ActionSetRTP:
		v, err := finiteValue(cmd)
		if err != nil {
			return res, err
		}
		applied := c.machine.SetRTP(v)
		res.Applied, res.Value = true, &applied
		c.persist(ctx, cmd.Action, func(ctx context.Context) error { return c.store.SaveRTP(ctx, applied) })

	case ActionSetNextCrashTarget:
		v, err := finiteValue(cmd)
		if err != nil {
			return res, err
		}
		// Saved before arming: the clear dispatched when a round consumes the
		// target must never be overtaken by this write.
		c.persist(ctx, cmd.Action, func(ctx context.Context) error { return c.store.SaveNextCrashTarget(ctx, v) })
		res.Applied, res.Value = c.machine.SetNextCrashTarget(v), &v

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}

	c.logger.Info("🛠️ Admin command", zap.String("action", cmd.Action), zap.Bool("applied", res.Applied))
	res.Paused = c.scheduler.IsPaused()
	res.State = c.machine.State()
	return res, nil
}

func (c *Controller) persist(ctx context.Context, action string, save func(context.Context) error) {
	if c.store == nil {
		return
	}
	if err := save(ctx); err != nil {
		c.logger.Warn("⚠️ Failed to persist admin command", zap.String("action", action), zap.Error(err))
	}
}

func finiteValue(cmd Command) (float64, error) {
	if cmd.Value == nil {
		return 0, fmt.Errorf("%w: %s requires a value", ErrInvalidValue, cmd.Action)
	}
	v := *cmd.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	return v, nil
}
