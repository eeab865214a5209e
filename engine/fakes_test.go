package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/shopspring/decimal"
)

// manualClock only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// halfEntropy yields seeds whose 52-bit prefix is 2^51 (U = 0.5).
type halfEntropy struct{}

func (halfEntropy) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	if len(p) > 0 {
		p[0] = 0x80
	}
	return len(p), nil
}

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("round-%d", s.n)
}

type recordingPublisher struct {
	mu       sync.Mutex
	states   []game.StatePayload
	history  []game.HistoryPayload
	bets     []game.BetResult
	cashouts []game.CashoutResult
	fail     error
}

func (p *recordingPublisher) PublishState(_ context.Context, payload game.StatePayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, payload)
	return p.fail
}

func (p *recordingPublisher) PublishHistory(_ context.Context, payload game.HistoryPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, payload)
	return p.fail
}

func (p *recordingPublisher) PublishBetResult(_ context.Context, result game.BetResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bets = append(p.bets, result)
	return p.fail
}

func (p *recordingPublisher) PublishCashoutResult(_ context.Context, result game.CashoutResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cashouts = append(p.cashouts, result)
	return p.fail
}

func (p *recordingPublisher) States() []game.StatePayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]game.StatePayload(nil), p.states...)
}

func (p *recordingPublisher) Cashouts() []game.CashoutResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]game.CashoutResult(nil), p.cashouts...)
}

func (p *recordingPublisher) Bets() []game.BetResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]game.BetResult(nil), p.bets...)
}

type recordingRounds struct {
	mu       sync.Mutex
	created  []string
	finished []game.FinishedRound
	fail     error
}

func (r *recordingRounds) CreateRound(_ context.Context, roundID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, roundID)
	return r.fail
}

func (r *recordingRounds) FinishRound(_ context.Context, round game.FinishedRound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, round)
	return r.fail
}

func (r *recordingRounds) Finished() []game.FinishedRound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]game.FinishedRound(nil), r.finished...)
}

type fakeTicket struct {
	userID    string
	roundID   string
	amount    float64
	threshold *float64
	settled   bool
}

// fakeLedger settles each ticket at most once, like the conditional update
// of the real ledger.
type fakeLedger struct {
	mu         sync.Mutex
	tickets    map[string]*fakeTicket
	balance    float64
	settles    map[string]int
	failTicket string
	duplicate  bool
	listCalls  []decimal.Decimal
	listGate   chan struct{}
	// listFailures fails that many ListCandidates calls before recovering.
	listFailures int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{tickets: map[string]*fakeTicket{}, settles: map[string]int{}, balance: 100}
}

func (l *fakeLedger) addTicket(id, user, round string, amount float64, threshold *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tickets[id] = &fakeTicket{userID: user, roundID: round, amount: amount, threshold: threshold}
}

func (l *fakeLedger) PlaceBet(_ context.Context, ticketID string, bet game.BetRequest) (game.WalletSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bet.Amount > l.balance {
		return game.WalletSnapshot{Balance: l.balance}, game.ErrInsufficientFunds
	}
	l.balance -= bet.Amount
	l.tickets[ticketID] = &fakeTicket{userID: bet.UserID, roundID: bet.RoundID, amount: bet.Amount, threshold: bet.AutoCashout}
	return game.WalletSnapshot{Balance: l.balance}, nil
}

func (l *fakeLedger) WalletSnapshot(context.Context, string) (game.WalletSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return game.WalletSnapshot{Balance: l.balance}, nil
}

func (l *fakeLedger) ListCandidates(ctx context.Context, roundID string, multiplier decimal.Decimal, limit int) ([]game.AutoCashoutCandidate, error) {
	if l.listGate != nil {
		select {
		case <-l.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listCalls = append(l.listCalls, multiplier)
	if l.listFailures > 0 {
		l.listFailures--
		return nil, errors.New("ledger unavailable")
	}

	var out []game.AutoCashoutCandidate
	for id, t := range l.tickets {
		if t.roundID != roundID || t.settled || t.threshold == nil {
			continue
		}
		if decimal.NewFromFloat(*t.threshold).GreaterThan(multiplier) {
			continue
		}
		c := game.AutoCashoutCandidate{TicketID: id, UserID: t.userID, RoundID: roundID, ThresholdMultiplier: *t.threshold}
		out = append(out, c)
		if l.duplicate {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLedger) Settle(_ context.Context, ticketID, userID, roundID string, multiplier decimal.Decimal) (game.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ticketID == l.failTicket {
		return game.Settlement{}, errors.New("ledger unavailable")
	}
	t, ok := l.tickets[ticketID]
	if !ok || t.userID != userID || t.roundID != roundID {
		return game.Settlement{}, game.ErrTicketNotFound
	}
	if t.settled {
		return game.Settlement{}, game.ErrAlreadySettled
	}
	t.settled = true
	l.settles[ticketID]++
	payout := multiplier.InexactFloat64()
	credited := t.amount * payout
	l.balance += credited
	return game.Settlement{TicketID: ticketID, CreditedAmount: credited, PayoutMultiplier: payout, Balance: l.balance}, nil
}

func (l *fakeLedger) SettleCount(ticketID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settles[ticketID]
}

type fakeStore struct {
	mu        sync.Mutex
	overrides config.SettingsOverrides
	cleared   int
	rtp       []float64
	targets   []float64
	paused    []bool
	fail      error
	// saveFail fails only the Save* calls.
	saveFail error
	// onSaveTarget runs inside SaveNextCrashTarget before it returns.
	onSaveTarget func()
}

func (s *fakeStore) Load(context.Context) (config.SettingsOverrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides, s.fail
}

func (s *fakeStore) ClearNextCrashTarget(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.overrides.NextCrashTarget = nil
	return s.fail
}

func (s *fakeStore) SaveRTP(_ context.Context, rtp float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtp = append(s.rtp, rtp)
	return s.saveErr()
}

func (s *fakeStore) SaveNextCrashTarget(_ context.Context, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
	if s.onSaveTarget != nil {
		s.onSaveTarget()
	}
	return s.saveErr()
}

func (s *fakeStore) SavePaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = append(s.paused, paused)
	return s.saveErr()
}

func (s *fakeStore) saveErr() error {
	if s.saveFail != nil {
		return s.saveFail
	}
	return s.fail
}

func (s *fakeStore) Cleared() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// harness wires a machine to recording fakes with a manual clock.
type harness struct {
	machine   *Machine
	pool      *TaskPool
	clock     *manualClock
	publisher *recordingPublisher
	rounds    *recordingRounds
	ledger    *fakeLedger
	store     *fakeStore
}

func newHarness(settings game.Settings) *harness {
	h := &harness{
		pool:      NewTaskPool(16, nil),
		clock:     newManualClock(),
		publisher: &recordingPublisher{},
		rounds:    &recordingRounds{},
		ledger:    newFakeLedger(),
		store:     &fakeStore{},
	}
	ids := &sequentialIDs{}
	h.machine = NewMachine(settings, Deps{
		Rounds:               h.rounds,
		Ledger:               h.ledger,
		Store:                h.store,
		Publisher:            h.publisher,
		Pool:                 h.pool,
		BroadcastMinInterval: 250 * time.Millisecond,
		Clock:                h.clock.Now,
		Entropy:              halfEntropy{},
		NewID:                ids.Next,
	})
	return h
}

// tick advances the clock and the machine together.
func (h *harness) tick(d time.Duration) {
	h.clock.Advance(d)
	h.machine.Tick(d)
}

// tickUntil ticks in steps of d until phase is reached or the limit runs out.
func (h *harness) tickUntil(phase game.Phase, d time.Duration, limit int) bool {
	for i := 0; i < limit; i++ {
		if h.machine.Round().Phase == phase {
			return true
		}
		h.tick(d)
	}
	return h.machine.Round().Phase == phase
}
