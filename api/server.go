package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aviatorServer/db"
	"aviatorServer/engine"
	"aviatorServer/game"

	"go.uber.org/zap"
)

// StateSource is the read side of the state machine.
type StateSource interface {
	State() game.StatePayload
	History() game.HistoryPayload
	Settings() game.Settings
}

// Commander executes player commands.
type Commander interface {
	PlaceBet(ctx context.Context, req game.BetRequest) (game.BetResult, error)
	Cashout(ctx context.Context, req game.CashoutRequest) (game.CashoutResult, error)
}

// AdminHandler applies operator commands.
type AdminHandler interface {
	Handle(ctx context.Context, cmd engine.Command) (engine.CommandResult, error)
}

// RoundLookup loads persisted rounds for verification.
type RoundLookup interface {
	GetRound(ctx context.Context, roundID string) (*db.RoundRecord, error)
}

// LeaderboardSource ranks wallets by PnL.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]db.WalletPnLRecord, error)
	Rank(ctx context.Context, userID string) (*db.WalletPnLRecord, error)
}

// HealthCheck is one named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires the handlers. Optional collaborators may be nil; their routes
// answer 503.
type Deps struct {
	State       StateSource
	Admin       AdminHandler
	Commands    Commander
	Rounds      RoundLookup
	Leaderboard LeaderboardSource
	Health      []HealthCheck
	Pool        *engine.TaskPool
	WS          http.Handler
	Logger      *zap.Logger
}

type server struct {
	Deps
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &server{Deps: d}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealthCheck)
	mux.HandleFunc("GET /api/crash/state", s.handleGetState)
	mux.HandleFunc("GET /api/crash/history", s.handleGetHistory)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("POST /api/round/override", s.handleOverride)
	mux.HandleFunc("POST /api/bets", s.handlePlaceBet)
	mux.HandleFunc("POST /api/cashout", s.handleCashout)
	mux.HandleFunc("GET /api/leaderboard", s.handleGetLeaderboard)
	if d.WS != nil {
		mux.Handle("GET /ws", d.WS)
	}
	return corsMiddleware(mux)
}

/* =========================
   HELPERS
========================= */

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidBet),
		errors.Is(err, engine.ErrInvalidValue),
		errors.Is(err, engine.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrBettingClosed),
		errors.Is(err, engine.ErrNotFlying),
		errors.Is(err, engine.ErrRoundMismatch),
		errors.Is(err, game.ErrAlreadySettled):
		return http.StatusConflict
	case errors.Is(err, game.ErrTicketNotFound),
		errors.Is(err, game.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
