package api

import (
	"context"
	"net/http"
	"time"

	"aviatorServer/engine"
	"aviatorServer/game"

	"go.uber.org/zap"
)

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// handleHealthCheck handles GET /api/health
func (s *server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	checks := make(map[string]string, len(s.Health))
	for _, h := range s.Health {
		status := "ok"
		if err := h.Check(ctx); err != nil {
			status = "error: " + err.Error()
			healthy = false
		}
		checks[h.Name] = status
	}

	response := map[string]any{
		"success": healthy,
		"checks":  checks,
		"message": "Health check completed",
	}
	if s.Pool != nil {
		response["tasks"] = s.Pool.Stats()
	}
	if s.State != nil {
		response["phase"] = s.State.State().Phase
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	sendJSON(w, status, response)
}

/* =========================
   ROUND STATE
========================= */

// StateResponse wraps the live state payload.
type StateResponse struct {
	Success bool              `json:"success"`
	State   game.StatePayload `json:"state"`
}

// handleGetState handles GET /api/crash/state
func (s *server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if s.State == nil {
		sendError(w, http.StatusServiceUnavailable, "Engine not available")
		return
	}
	sendJSON(w, http.StatusOK, StateResponse{Success: true, State: s.State.State()})
}

// HistoryResponse wraps the recent rounds, newest first.
type HistoryResponse struct {
	Success bool                `json:"success"`
	Entries []game.HistoryEntry `json:"entries"`
}

// handleGetHistory handles GET /api/crash/history
func (s *server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.State == nil {
		sendError(w, http.StatusServiceUnavailable, "Engine not available")
		return
	}
	entries := s.State.History().Entries
	if entries == nil {
		entries = []game.HistoryEntry{}
	}
	sendJSON(w, http.StatusOK, HistoryResponse{Success: true, Entries: entries})
}

/* =========================
   ADMIN OVERRIDE
========================= */

// OverrideResponse reports the outcome of an admin command.
type OverrideResponse struct {
	Success bool                 `json:"success"`
	Result  engine.CommandResult `json:"result"`
}

// handleOverride handles POST /api/round/override
func (s *server) handleOverride(w http.ResponseWriter, r *http.Request) {
	if s.Admin == nil {
		sendError(w, http.StatusServiceUnavailable, "Admin commands not available")
		return
	}
	var cmd engine.Command
	if err := decodeBody(w, r, &cmd); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.Admin.Handle(r.Context(), cmd)
	if err != nil {
		sendError(w, statusFor(err), err.Error())
		return
	}
	s.Logger.Info("🛠️ Override applied", zap.String("action", cmd.Action), zap.Bool("applied", result.Applied))
	sendJSON(w, http.StatusOK, OverrideResponse{Success: true, Result: result})
}
