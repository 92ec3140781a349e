package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// HistoryDependencies lists a player's recent results.
type HistoryDependencies interface {
	History(ctx context.Context, playerID string, limit int) ([]model.GameResult, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /history/{player_id}?limit=N.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	playerID := strings.TrimSpace(r.PathValue("player_id"))
	if playerID == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	n, err := parseLimit(r.URL.Query().Get("limit"), min(defaultHistoryLimit, h.maxLimit), h.maxLimit)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	results, err := h.deps.History(r.Context(), playerID, n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}
