package api

import (
	"context"
	"net/http"

	"github.com/okian/cryptoheroes/internal/domain/model"
)

// BattleDependencies runs battles.
type BattleDependencies interface {
	// Battle scores a battle and queues its result. A reused battle id
	// fails with a duplicate error.
	Battle(ctx context.Context, req model.BattleRequest) (model.BattleResult, error)
}

// BattlesHandler handles battle requests.
type BattlesHandler struct {
	deps BattleDependencies
}

// NewBattlesHandler creates a new battles handler.
func NewBattlesHandler(deps BattleDependencies) *BattlesHandler {
	return &BattlesHandler{deps: deps}
}

// HandlePostBattle handles POST /battles.
func (h *BattlesHandler) HandlePostBattle(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_battle"
	var req model.BattleRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Battle(r.Context(), req)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
