package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, playerID string) (model.Standing, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{player_id}.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	playerID := strings.TrimSpace(r.PathValue("player_id"))
	if playerID == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	st, err := h.deps.Rank(r.Context(), playerID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
