package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the lifecycle phase of a round.
type Phase string

const (
	PhaseAwaitingBets Phase = "awaitingBets"
	PhaseFlying       Phase = "flying"
	PhaseCrashed      Phase = "crashed"
)

// RoundContext is the live state of one round. It is replaced wholesale when
// a new round starts.
type RoundContext struct {
	RoundID        string
	CrashTarget    decimal.Decimal // never exposed before the round crashes
	Multiplier     decimal.Decimal
	Phase          Phase
	PhaseStartedAt time.Time

	// Only meaningful while AwaitingBets.
	BettingWindowRemaining time.Duration

	Seed       string // revealed once crashed
	PublicHash string
	Forced     bool
}

// BettingWindow is the countdown block of the state payload.
type BettingWindow struct {
	ClosesInMs int64 `json:"closesInMs"`
}

// StatePayload is the wire shape of a state broadcast.
type StatePayload struct {
	RoundID        string        `json:"roundId"`
	Phase          Phase         `json:"phase"`
	Multiplier     float64       `json:"multiplier"`
	PhaseStartedAt time.Time     `json:"phaseStartedAt"`
	Hash           string        `json:"hash"`
	BettingWindow  BettingWindow `json:"bettingWindow"`

	// Crashed only.
	Seed            string   `json:"seed,omitempty"`
	CrashMultiplier *float64 `json:"crashMultiplier,omitempty"`
}

// HistoryPayload is the wire shape of a history broadcast.
type HistoryPayload struct {
	Entries []HistoryEntry `json:"entries"`
}

// WalletSnapshot is the balance reported back with bet and cashout results.
type WalletSnapshot struct {
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BetRequest is a validated wager for the open round.
type BetRequest struct {
	RoundID     string   `json:"roundId"`
	UserID      string   `json:"userId"`
	Amount      float64  `json:"amount"`
	AutoCashout *float64 `json:"autoCashout,omitempty"`
}

// CashoutRequest asks to settle a ticket at the current multiplier.
type CashoutRequest struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	RoundID  string `json:"roundId"`
}

type BetStatus string

const (
	BetAccepted BetStatus = "accepted"
	BetRejected BetStatus = "rejected"
)

// BetResult is published on the bet channel after every placement attempt.
type BetResult struct {
	RoundID  string         `json:"roundId"`
	UserID   string         `json:"userId"`
	Status   BetStatus      `json:"status"`
	Reason   string         `json:"reason,omitempty"`
	TicketID string         `json:"ticketId,omitempty"`
	Snapshot WalletSnapshot `json:"snapshot"`
}

type CashoutStatus string

const (
	CashoutCredited CashoutStatus = "credited"
	CashoutRejected CashoutStatus = "rejected"
)

type CashoutKind string

const (
	CashoutManual CashoutKind = "manual"
	CashoutAuto   CashoutKind = "auto"
)

// CashoutResult is published on the cashout channel.
type CashoutResult struct {
	TicketID          string         `json:"ticketId"`
	RoundID           string         `json:"roundId,omitempty"`
	Kind              CashoutKind    `json:"kind"`
	Status            CashoutStatus  `json:"status"`
	CreditedAmount    float64        `json:"creditedAmount,omitempty"`
	CashoutMultiplier float64        `json:"cashoutMultiplier,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	Snapshot          WalletSnapshot `json:"snapshot"`
}

// AutoCashoutCandidate is a read-only projection of a ticket whose configured
// auto-cashout threshold has been reached.
type AutoCashoutCandidate struct {
	TicketID            string
	UserID              string
	RoundID             string
	ThresholdMultiplier float64
}

// Settlement is what the ledger reports after crediting a ticket.
type Settlement struct {
	TicketID         string
	CreditedAmount   float64
	PayoutMultiplier float64
	Balance          float64
	UpdatedAt        time.Time
}

// FinishedRound is handed to the round collaborator when a round crashes.
type FinishedRound struct {
	RoundID         string
	FinalMultiplier float64
	Seed            string
	PublicHash      string
	Forced          bool
	RTPPercent      float64
	MinCrash        float64
	MaxCrash        float64
	FinishedAt      time.Time
}
