package api

import (
	"net/http"
	"strconv"

	"aviatorServer/db"

	"go.uber.org/zap"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardResponse represents the leaderboard response
type LeaderboardResponse struct {
	Success      bool                 `json:"success"`
	Leaderboard  []db.WalletPnLRecord `json:"leaderboard"`
	UserPosition *db.WalletPnLRecord  `json:"userPosition,omitempty"`
}

// handleGetLeaderboard handles GET /api/leaderboard?user=...&limit=...
func (s *server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.Leaderboard == nil {
		sendError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	records, err := s.Leaderboard.Leaderboard(r.Context(), limit)
	if err != nil {
		s.Logger.Error("❌ Failed to get leaderboard", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}
	if records == nil {
		records = []db.WalletPnLRecord{}
	}

	response := LeaderboardResponse{Success: true, Leaderboard: records}

	// Only look the user up separately if they are outside the top list.
	if user := r.URL.Query().Get("user"); user != "" {
		for i := range records {
			if records[i].UserID == user {
				response.UserPosition = &records[i]
				break
			}
		}
		if response.UserPosition == nil {
			pos, err := s.Leaderboard.Rank(r.Context(), user)
			if err != nil {
				s.Logger.Warn("⚠️ Failed to get user position", zap.String("user", user), zap.Error(err))
			}
			response.UserPosition = pos
		}
	}

	sendJSON(w, http.StatusOK, response)
}
