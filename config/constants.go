package config

import (
	"math/big"
	"time"
)

/* =========================
   ENGINE DEFAULTS - CRASH
========================= */

const (
	// Round timing
	DefaultBettingWindowMs = 4000 // AwaitingBets duration
	DefaultSettleDelayMs   = 1500 // Crashed phase pause before the next round
	DefaultFlightTickScale = 0.001

	// Payout limits
	DefaultMinCrashMultiplier = 1.2
	DefaultMaxCrashMultiplier = 35.0
	DefaultRTPPercent         = 97.0

	// History
	DefaultHistorySize = 30

	// Loop cadence
	DefaultTickInterval          = 100 * time.Millisecond
	DefaultBroadcastMinInterval  = 250 * time.Millisecond
	DefaultSettingsRefreshPeriod = 5 * time.Second
	DefaultTaskConcurrency       = 64
)

/* =========================
   HISTORY BUCKETS
========================= */

const (
	BucketPurpleFrom = 2.0  // multiplier < 2.0 is blue
	BucketPinkFrom   = 10.0 // multiplier >= 10.0 is pink
)

/* =========================
   REALTIME CHANNELS
========================= */

const (
	ChannelState   = "game.state"
	ChannelHistory = "game.history"
	ChannelBet     = "commands.bet"
	ChannelCashout = "commands.cashout"
)

/* =========================
   BACKGROUND TASK TIMEOUTS
========================= */

const (
	RoundWriteTimeout   = 10 * time.Second
	SettlementTimeout   = 5 * time.Second
	PublishTimeout      = 3 * time.Second
	SettingsIOTimeout   = 5 * time.Second
	CandidateBatchLimit = 50
	FinalSweepAttempts  = 3
	FinalSweepBackoff   = 100 * time.Millisecond
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	MaxConns        = 25
	MinConns        = 5
	ConnMaxLifetime = 5 * time.Minute
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline    = 60 * time.Second
	WSWriteDeadline   = 10 * time.Second
	WSPingInterval    = 30 * time.Second
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSSendBuffer      = 256
	MaxMessageSize    = 512 * 1024 // 512KB
)

/* =========================
   BET LIMITS
========================= */

const (
	MinBetAmount = 0.5
	MaxBetAmount = 500.0
)

/* =========================
   HELPER FUNCTIONS
========================= */

// MultiplierToWei converts a multiplier (float64) to 18-decimal fixed point (*big.Int)
func MultiplierToWei(multiplier float64) *big.Int {
	weiFloat := new(big.Float).SetFloat64(multiplier)
	weiFloat.Mul(weiFloat, new(big.Float).SetFloat64(1e18))
	wei, _ := weiFloat.Int(nil)
	return wei
}
