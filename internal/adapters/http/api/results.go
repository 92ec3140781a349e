package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// ResultDependencies accepts externally produced results.
type ResultDependencies interface {
	// SubmitResult queues res. duplicate is true when the battle id was
	// already seen; nothing is queued then.
	SubmitResult(ctx context.Context, res model.GameResult) (duplicate bool, err error)
}

// ResultsHandler handles POST /results.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// resultRequest mirrors the OpenAPI schema for POST /results.
type resultRequest struct {
	BattleID            string `json:"battle_id" validate:"required,max=128"`
	PlayerID            string `json:"player_id" validate:"omitempty,max=64"`
	PlayerCharacterID   string `json:"player_character_id" validate:"required,max=128"`
	OpponentCharacterID string `json:"opponent_character_id" validate:"required,max=128"`
	Outcome             string `json:"outcome" validate:"required,oneof=win lose draw"`
	PlayerScore         int    `json:"player_score" validate:"gte=0"`
	OpponentScore       int    `json:"opponent_score" validate:"gte=0"`
	Mode                string `json:"mode" validate:"omitempty,oneof=pvp computer"`
	TS                  string `json:"ts" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (req resultRequest) toGameResult() model.GameResult {
	res := model.GameResult{
		BattleID:            req.BattleID,
		PlayerID:            req.PlayerID,
		PlayerCharacterID:   req.PlayerCharacterID,
		OpponentCharacterID: req.OpponentCharacterID,
		Outcome:             model.Outcome(req.Outcome),
		PlayerScore:         req.PlayerScore,
		OpponentScore:       req.OpponentScore,
		Mode:                req.Mode,
	}
	if ts, err := time.Parse(time.RFC3339, req.TS); err == nil {
		res.PlayedAt = ts.UTC()
	}
	return res
}

// HandlePostResult handles POST /results: 202 when queued, 200 for a
// duplicate battle id, 429 when the queue is full.
func (h *ResultsHandler) HandlePostResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_result"
	var req resultRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.SubmitResult(r.Context(), req.toGameResult())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
