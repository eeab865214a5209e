package api

import (
	"net/http"

	"aviatorServer/game"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

/* =========================
   VERIFY ENDPOINT
========================= */

// VerifyRequest either names a finished round or supplies a revealed seed and
// hash directly. Limits default to the round's recorded settings, then to
// the live settings.
type VerifyRequest struct {
	RoundID  string   `json:"roundId,omitempty"`
	Seed     string   `json:"seed,omitempty"`
	Hash     string   `json:"hash,omitempty"`
	RTP      *float64 `json:"rtp,omitempty"`
	MinCrash *float64 `json:"minCrash,omitempty"`
	MaxCrash *float64 `json:"maxCrash,omitempty"`
}

// VerifyResponse reports whether the seed hashes to the published hash and
// which crash multiplier it implies.
type VerifyResponse struct {
	Success         bool     `json:"success"`
	RoundID         string   `json:"roundId,omitempty"`
	HashValid       bool     `json:"hashValid"`
	CrashMultiplier float64  `json:"crashMultiplier"`
	Recorded        *float64 `json:"recordedMultiplier,omitempty"`
	Matches         *bool    `json:"matches,omitempty"`
	Forced          bool     `json:"forced"`
}

// handleVerify handles POST /api/verify
func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var live game.Settings
	if s.State != nil {
		live = s.State.Settings()
	} else {
		live = game.DefaultSettings()
	}
	rtp, lo, hi := live.RTPPercent, live.MinCrashMultiplier, live.MaxCrashMultiplier

	resp := VerifyResponse{Success: true, RoundID: req.RoundID}

	if req.RoundID != "" {
		if s.Rounds == nil {
			sendError(w, http.StatusServiceUnavailable, "Round history not available")
			return
		}
		round, err := s.Rounds.GetRound(r.Context(), req.RoundID)
		if err != nil {
			s.Logger.Error("❌ Failed to load round", zap.String("roundId", req.RoundID), zap.Error(err))
			sendError(w, http.StatusInternalServerError, "Failed to load round")
			return
		}
		if round == nil {
			sendError(w, http.StatusNotFound, "Round not found")
			return
		}
		if round.Seed == "" {
			sendError(w, http.StatusConflict, "Round not finished")
			return
		}
		req.Seed, req.Hash = round.Seed, round.PublicHash
		if round.RTPPercent != nil {
			rtp = *round.RTPPercent
		}
		if round.MinCrash != nil {
			lo = *round.MinCrash
		}
		if round.MaxCrash != nil {
			hi = *round.MaxCrash
		}
		resp.Recorded = round.FinalMultiplier
		resp.Forced = round.Forced
	}

	if req.Seed == "" || req.Hash == "" {
		sendError(w, http.StatusBadRequest, "Missing required fields: seed, hash")
		return
	}
	if req.RTP != nil {
		rtp = *req.RTP
	}
	if req.MinCrash != nil {
		lo = *req.MinCrash
	}
	if req.MaxCrash != nil {
		hi = *req.MaxCrash
	}

	v, err := game.VerifyCrashPoint(req.Seed, req.Hash, rtp, lo, hi)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp.HashValid = v.HashValid
	resp.CrashMultiplier = v.CrashTarget.InexactFloat64()
	if resp.Recorded != nil {
		matches := v.HashValid && v.CrashTarget.Equal(decimal.NewFromFloat(*resp.Recorded))
		resp.Matches = &matches
	}

	sendJSON(w, http.StatusOK, resp)
}
