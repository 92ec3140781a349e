package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/internal/domain/roster"
)

// RosterDependencies exposes the character roster.
type RosterDependencies interface {
	Characters(ctx context.Context) (roster.Roster, error)
	Character(ctx context.Context, id string) (model.Character, error)
}

// CharactersHandler serves the roster.
type CharactersHandler struct {
	deps RosterDependencies
}

// NewCharactersHandler creates a new characters handler.
func NewCharactersHandler(deps RosterDependencies) *CharactersHandler {
	return &CharactersHandler{deps: deps}
}

type charactersResponse struct {
	Characters []model.Character `json:"characters"`
	Count      int               `json:"count"`
	Origin     roster.Origin     `json:"origin"`
	FetchedAt  *time.Time        `json:"fetched_at,omitempty"`
}

// HandleList handles GET /characters.
func (h *CharactersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_characters"
	ros, err := h.deps.Characters(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	resp := charactersResponse{
		Characters: ros.Characters,
		Count:      len(ros.Characters),
		Origin:     ros.Origin,
	}
	if !ros.FetchedAt.IsZero() {
		resp.FetchedAt = &ros.FetchedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /characters/{id}.
func (h *CharactersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_character"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	c, err := h.deps.Character(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
