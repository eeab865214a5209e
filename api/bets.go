package api

import (
	"net/http"

	"aviatorServer/game"
)

// BetResponse carries the bet result. Rejections are reported with a
// non-2xx status and the same body.
type BetResponse struct {
	Success bool           `json:"success"`
	Result  game.BetResult `json:"result"`
}

// handlePlaceBet handles POST /api/bets
func (s *server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	if s.Commands == nil {
		sendError(w, http.StatusServiceUnavailable, "Betting not available")
		return
	}
	var req game.BetRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.Commands.PlaceBet(r.Context(), req)
	if err != nil {
		sendJSON(w, statusFor(err), BetResponse{Success: false, Result: result})
		return
	}
	sendJSON(w, http.StatusOK, BetResponse{Success: true, Result: result})
}

// CashoutResponse carries the cashout result.
type CashoutResponse struct {
	Success bool               `json:"success"`
	Result  game.CashoutResult `json:"result"`
}

// handleCashout handles POST /api/cashout
func (s *server) handleCashout(w http.ResponseWriter, r *http.Request) {
	if s.Commands == nil {
		sendError(w, http.StatusServiceUnavailable, "Betting not available")
		return
	}
	var req game.CashoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.Commands.Cashout(r.Context(), req)
	if err != nil {
		sendJSON(w, statusFor(err), CashoutResponse{Success: false, Result: result})
		return
	}
	sendJSON(w, http.StatusOK, CashoutResponse{Success: true, Result: result})
}
