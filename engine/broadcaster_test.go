package engine

import (
	"context"
	mrand "math/rand"
	"sync"
	"testing"
	"time"

	"aviatorServer/game"
)

func TestBroadcasterThrottle(t *testing.T) {
	clock := newManualClock()
	pub := &recordingPublisher{}
	pool := NewTaskPool(4, nil)
	b := NewBroadcaster(pub, pool, 250*time.Millisecond, clock.Now, nil)

	frame := func(round string, phase game.Phase) game.StatePayload {
		return game.StatePayload{RoundID: round, Phase: phase}
	}

	steps := []struct {
		name    string
		advance time.Duration
		payload game.StatePayload
		want    bool
	}{
		{"FirstFrame", 0, frame("r1", game.PhaseAwaitingBets), true},
		{"SamePhaseWithinInterval", 100 * time.Millisecond, frame("r1", game.PhaseAwaitingBets), false},
		{"SamePhaseJustBeforeInterval", 149 * time.Millisecond, frame("r1", game.PhaseAwaitingBets), false},
		{"SamePhaseAfterInterval", time.Millisecond, frame("r1", game.PhaseAwaitingBets), true},
		{"PhaseChangeBypasses", time.Millisecond, frame("r1", game.PhaseFlying), true},
		{"PhaseChangeAgainBypasses", time.Millisecond, frame("r1", game.PhaseCrashed), true},
		{"RoundChangeBypasses", time.Millisecond, frame("r2", game.PhaseCrashed), true},
		{"SuppressedAgain", 10 * time.Millisecond, frame("r2", game.PhaseCrashed), false},
	}

	sent := 0
	for _, step := range steps {
		clock.Advance(step.advance)
		got := b.PublishState(step.payload)
		if got != step.want {
			t.Errorf("%s: expected sent=%v, got %v", step.name, step.want, got)
		}
		if got {
			sent++
		}
	}

	pool.Wait()
	if n := len(pub.States()); n != sent {
		t.Errorf("expected %d frames published, got %d", sent, n)
	}
	if b.Suppressed() != 3 {
		t.Errorf("expected 3 suppressed frames, got %d", b.Suppressed())
	}
}

func TestBroadcasterEveryTransitionReachesPublisher(t *testing.T) {
	h := newHarness(game.DefaultSettings())

	// Tiny ticks make nearly every frame a throttled one.
	for i := 0; i < 3; i++ {
		h.tickUntil(game.PhaseCrashed, 5*time.Millisecond, 100000)
		h.tickUntil(game.PhaseAwaitingBets, 5*time.Millisecond, 100000)
	}
	h.pool.Wait()

	type key struct {
		round string
		phase game.Phase
	}
	seen := map[key]bool{}
	for _, s := range h.publisher.States() {
		seen[key{s.RoundID, s.Phase}] = true
	}
	for _, round := range []string{"round-1", "round-2", "round-3"} {
		for _, phase := range []game.Phase{game.PhaseAwaitingBets, game.PhaseFlying, game.PhaseCrashed} {
			if !seen[key{round, phase}] {
				t.Errorf("missing %s frame for %s", phase, round)
			}
		}
	}
	if h.machine.Broadcaster().Suppressed() == 0 {
		t.Error("expected the throttle to suppress same-phase frames")
	}
}

// jitterPublisher delays every state frame by a random 0-2ms.
type jitterPublisher struct {
	*recordingPublisher
	mu  sync.Mutex
	rng *mrand.Rand
}

func (p *jitterPublisher) PublishState(ctx context.Context, payload game.StatePayload) error {
	p.mu.Lock()
	d := time.Duration(p.rng.Intn(2000)) * time.Microsecond
	p.mu.Unlock()
	time.Sleep(d)
	return p.recordingPublisher.PublishState(ctx, payload)
}

func TestBroadcasterDeliversStatesInOrder(t *testing.T) {
	pub := &jitterPublisher{recordingPublisher: &recordingPublisher{}, rng: mrand.New(mrand.NewSource(3))}
	pool := NewTaskPool(16, nil)
	clock := newManualClock()
	ids := &sequentialIDs{}
	m := NewMachine(game.DefaultSettings(), Deps{
		Rounds:               &recordingRounds{},
		Ledger:               newFakeLedger(),
		Store:                &fakeStore{},
		Publisher:            pub,
		Pool:                 pool,
		BroadcastMinInterval: 20 * time.Millisecond,
		Clock:                clock.Now,
		Entropy:              halfEntropy{},
		NewID:                ids.Next,
	})

	for i := 0; i < 1500; i++ {
		clock.Advance(10 * time.Millisecond)
		m.Tick(10 * time.Millisecond)
	}
	pool.Wait()

	rank := map[game.Phase]int{game.PhaseAwaitingBets: 0, game.PhaseFlying: 1, game.PhaseCrashed: 2}
	states := pub.States()
	if len(states) == 0 {
		t.Fatal("no frames delivered")
	}
	for i := 1; i < len(states); i++ {
		prev, cur := states[i-1], states[i]
		if prev.RoundID == cur.RoundID {
			if rank[cur.Phase] < rank[prev.Phase] {
				t.Fatalf("frame %d: %s went from %s back to %s", i, cur.RoundID, prev.Phase, cur.Phase)
			}
			if cur.Phase == game.PhaseFlying && prev.Phase == game.PhaseFlying && cur.Multiplier < prev.Multiplier {
				t.Fatalf("frame %d: multiplier went backwards %v -> %v", i, prev.Multiplier, cur.Multiplier)
			}
			continue
		}
		if prev.Phase != game.PhaseCrashed {
			t.Fatalf("frame %d: %s started while %s was still %s", i, cur.RoundID, prev.RoundID, prev.Phase)
		}
	}
}
