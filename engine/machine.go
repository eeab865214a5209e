package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deps are the collaborators and hooks of a Machine. Only Pool is required.
type Deps struct {
	Rounds    RoundService
	Ledger    AutoCashoutLedger
	Store     SettingsStore
	Publisher Publisher
	Pool      *TaskPool
	Logger    *zap.Logger

	BroadcastMinInterval time.Duration
	SettlementFanout     int

	Clock   func() time.Time
	Entropy io.Reader
	NewID   func() string
}

// Machine is the round lifecycle state machine. Tick and the admin methods
// are linearized by a mutex; all I/O they trigger runs on the task pool.
type Machine struct {
	mu            sync.Mutex
	settings      game.Settings
	roundSettings game.Settings // snapshot the live round was generated with
	round         game.RoundContext
	history       *game.HistoryBuffer
	crashedFor    time.Duration

	generator   game.Generator
	now         func() time.Time
	newID       func() string
	rounds      RoundService
	store       SettingsStore
	broadcaster *Broadcaster
	settlement  *AutoCashoutSettlement
	pool        *TaskPool
	logger      *zap.Logger
}

// NewMachine builds a machine and opens its first round.
func NewMachine(settings game.Settings, deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Pool == nil {
		deps.Pool = NewTaskPool(config.DefaultTaskConcurrency, deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	settings = settings.Normalized()

	broadcaster := NewBroadcaster(deps.Publisher, deps.Pool, deps.BroadcastMinInterval, deps.Clock, deps.Logger.Named("broadcaster"))
	m := &Machine{
		settings:    settings,
		history:     game.NewHistoryBuffer(settings.HistorySize),
		generator:   game.Generator{Entropy: deps.Entropy},
		now:         deps.Clock,
		newID:       deps.NewID,
		rounds:      deps.Rounds,
		store:       deps.Store,
		broadcaster: broadcaster,
		settlement:  NewAutoCashoutSettlement(deps.Ledger, broadcaster, deps.Pool, deps.SettlementFanout, deps.Logger.Named("autocashout")),
		pool:        deps.Pool,
		logger:      deps.Logger,
	}

	m.mu.Lock()
	m.startRound()
	m.mu.Unlock()
	return m
}

// Tick advances the live round by delta. It never blocks on I/O and never
// fails: collaborator errors are logged by the task pool.
func (m *Machine) Tick(delta time.Duration) {
	if delta < 0 {
		delta = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.round.Phase {
	case game.PhaseAwaitingBets:
		m.tickAwaitingBets(delta)
	case game.PhaseFlying:
		m.tickFlying(delta)
	case game.PhaseCrashed:
		m.tickCrashed(delta)
	}
}

func (m *Machine) tickAwaitingBets(delta time.Duration) {
	m.round.BettingWindowRemaining -= delta
	if m.round.BettingWindowRemaining < 0 {
		m.round.BettingWindowRemaining = 0
	}
	m.broadcaster.PublishState(m.statePayload())
	if m.round.BettingWindowRemaining == 0 {
		m.enterFlying()
	}
}

func (m *Machine) enterFlying() {
	m.round.Phase = game.PhaseFlying
	m.round.Multiplier = decimal.NewFromInt(1)
	m.round.PhaseStartedAt = m.now()
	m.broadcaster.PublishState(m.statePayload())
	m.logger.Info("🚀 Round took off", zap.String("roundId", m.round.RoundID))
}

func (m *Machine) tickFlying(delta time.Duration) {
	ceiling := m.ceiling()

	// Growth is delta in milliseconds times the tick scale, kept exact.
	growth := decimal.NewFromInt(delta.Microseconds()).Shift(-3).
		Mul(decimal.NewFromFloat(m.settings.FlightTickScale))
	next := m.round.Multiplier.Add(growth)
	if next.GreaterThan(ceiling) {
		next = ceiling
	}
	if next.LessThan(m.round.Multiplier) {
		next = m.round.Multiplier
	}
	m.round.Multiplier = next

	m.settlement.Run(m.round.RoundID, next)
	m.broadcaster.PublishState(m.statePayload())

	if next.GreaterThanOrEqual(ceiling) {
		m.enterCrashed()
	}
}

// ceiling is min(crashTarget, maxCrashMultiplier).
func (m *Machine) ceiling() decimal.Decimal {
	return decimal.Min(m.round.CrashTarget, decimal.NewFromFloat(m.settings.MaxCrashMultiplier))
}

func (m *Machine) enterCrashed() {
	now := m.now()
	m.round.Phase = game.PhaseCrashed
	m.round.PhaseStartedAt = now
	m.crashedFor = 0

	m.settlement.Sweep(m.round.RoundID, m.round.Multiplier)

	final := m.round.Multiplier.InexactFloat64()
	m.history.Record(game.NewHistoryEntry(m.round.RoundID, final, now))

	finished := game.FinishedRound{
		RoundID:         m.round.RoundID,
		FinalMultiplier: final,
		Seed:            m.round.Seed,
		PublicHash:      m.round.PublicHash,
		Forced:          m.round.Forced,
		RTPPercent:      m.roundSettings.RTPPercent,
		MinCrash:        m.roundSettings.MinCrashMultiplier,
		MaxCrash:        m.roundSettings.MaxCrashMultiplier,
		FinishedAt:      now,
	}
	if m.rounds != nil {
		m.pool.Go("round.finish", config.RoundWriteTimeout, func(ctx context.Context) error {
			return m.rounds.FinishRound(ctx, finished)
		})
	}

	m.broadcaster.PublishState(m.statePayload())
	m.broadcaster.PublishHistory(game.HistoryPayload{Entries: m.history.Snapshot()})
	m.logger.Info("💥 Round crashed",
		zap.String("roundId", finished.RoundID),
		zap.Float64("multiplier", final),
		zap.Bool("forced", finished.Forced))
}

func (m *Machine) tickCrashed(delta time.Duration) {
	m.crashedFor += delta
	if m.crashedFor >= m.settings.SettleDelay {
		m.startRound()
	}
}

// startRound replaces the round context with a freshly generated one.
func (m *Machine) startRound() {
	point, err := m.generator.Generate(m.settings)
	if err != nil {
		m.logger.Error("❌ Crash point generation fell back to minimum", zap.Error(err))
	}

	m.roundSettings = m.settings
	if point.Forced {
		// Consumed in memory with the generation; the persisted clear is best-effort.
		m.settings = m.settings.WithoutNextCrashTarget()
		if m.store != nil {
			m.pool.Go("settings.clear_next_crash_target", config.SettingsIOTimeout, m.store.ClearNextCrashTarget)
		}
	}

	now := m.now()
	m.round = game.RoundContext{
		RoundID:                m.newID(),
		CrashTarget:            point.CrashTarget,
		Multiplier:             decimal.NewFromInt(1),
		Phase:                  game.PhaseAwaitingBets,
		PhaseStartedAt:         now,
		BettingWindowRemaining: m.settings.BettingWindow,
		Seed:                   point.Seed,
		PublicHash:             point.PublicHash,
		Forced:                 point.Forced,
	}
	m.crashedFor = 0

	if m.rounds != nil {
		roundID, hash := m.round.RoundID, m.round.PublicHash
		m.pool.Go("round.create", config.RoundWriteTimeout, func(ctx context.Context) error {
			return m.rounds.CreateRound(ctx, roundID, hash)
		})
	}
	m.broadcaster.PublishState(m.statePayload())
	m.logger.Info("🎲 Round open for bets",
		zap.String("roundId", m.round.RoundID),
		zap.String("hash", m.round.PublicHash))
}

// ForceCrash ends a flying round at its current multiplier. It reports
// whether the round was flying; outside Flying it does nothing.
func (m *Machine) ForceCrash() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round.Phase != game.PhaseFlying {
		return false
	}
	m.round.CrashTarget = m.round.Multiplier
	m.enterCrashed()
	return true
}

// SetRTP takes effect from the next generated round and returns the clamped value.
func (m *Machine) SetRTP(rtp float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = m.settings.WithRTP(rtp)
	return m.settings.RTPPercent
}

// SetNextCrashTarget arms a one-shot target for the next generated round.
// Non-finite values are rejected.
func (m *Machine) SetNextCrashTarget(target float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.settings.WithNextCrashTarget(target)
	if next.NextCrashTarget == nil {
		return false
	}
	m.settings = next
	return true
}

// ApplyOverrides layers operator fields onto the settings snapshot. The
// pending one-shot target is kept. A live round whose target falls outside
// the new crash limits is pulled back inside them.
func (m *Machine) ApplyOverrides(o config.SettingsOverrides) {
	o.NextCrashTarget = nil
	o.Paused = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = m.settings.WithOverrides(o)
	m.history.Resize(m.settings.HistorySize)

	if m.round.Phase == game.PhaseCrashed {
		return
	}
	lo := decimal.NewFromFloat(m.settings.MinCrashMultiplier)
	hi := decimal.NewFromFloat(m.settings.MaxCrashMultiplier)
	target := game.Clamp(m.round.CrashTarget, lo, hi)
	if target.LessThan(m.round.Multiplier) {
		target = m.round.Multiplier
	}
	if !target.Equal(m.round.CrashTarget) {
		m.logger.Info("📐 Live crash target clamped",
			zap.String("roundId", m.round.RoundID),
			zap.String("from", m.round.CrashTarget.StringFixed(2)),
			zap.String("to", target.StringFixed(2)))
		m.round.CrashTarget = target
	}
}

// SeedHistory loads finished rounds, newest first, into an empty buffer.
func (m *Machine) SeedHistory(entries []game.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(entries) - 1; i >= 0; i-- {
		m.history.Record(entries[i])
	}
}

func (m *Machine) Settings() game.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Round returns a copy of the live round context.
func (m *Machine) Round() game.RoundContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round
}

func (m *Machine) State() game.StatePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statePayload()
}

func (m *Machine) History() game.HistoryPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return game.HistoryPayload{Entries: m.history.Snapshot()}
}

func (m *Machine) Broadcaster() *Broadcaster { return m.broadcaster }

func (m *Machine) statePayload() game.StatePayload {
	p := game.StatePayload{
		RoundID:        m.round.RoundID,
		Phase:          m.round.Phase,
		Multiplier:     m.round.Multiplier.InexactFloat64(),
		PhaseStartedAt: m.round.PhaseStartedAt,
		Hash:           m.round.PublicHash,
	}
	switch m.round.Phase {
	case game.PhaseAwaitingBets:
		p.BettingWindow.ClosesInMs = m.round.BettingWindowRemaining.Milliseconds()
	case game.PhaseCrashed:
		crash := m.round.Multiplier.InexactFloat64()
		p.Seed = m.round.Seed
		p.CrashMultiplier = &crash
	}
	return p
}

type nopPublisher struct{}

func (nopPublisher) PublishState(context.Context, game.StatePayload) error          { return nil }
func (nopPublisher) PublishHistory(context.Context, game.HistoryPayload) error      { return nil }
func (nopPublisher) PublishBetResult(context.Context, game.BetResult) error         { return nil }
func (nopPublisher) PublishCashoutResult(context.Context, game.CashoutResult) error { return nil }
