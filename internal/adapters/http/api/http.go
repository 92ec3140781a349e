// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/cryptoheroes/internal/adapters/mq/queue"
	"github.com/okian/cryptoheroes/internal/adapters/repository"
	"github.com/okian/cryptoheroes/internal/domain/battle"
	"github.com/okian/cryptoheroes/internal/domain/roster"
	"github.com/okian/cryptoheroes/pkg/logger"
)

const (
	defaultMaxLeaderboardLimit = 100
	defaultMaxHistoryLimit     = 100
	defaultHistoryLimit        = 20
	maxBodyBytes               = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RosterDependencies
	BattleDependencies
	ResultDependencies
	LeaderboardDependencies
	RankDependencies
	HistoryDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	charactersHandler  *CharactersHandler
	battlesHandler     *BattlesHandler
	resultsHandler     *ResultsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	historyHandler     *HistoryHandler

	feed   http.Handler
	logger logger.Logger

	maxLeaderboardLimit int
	maxHistoryLimit     int
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithMaxHistoryLimit caps GET /history/{player_id}?limit.
func WithMaxHistoryLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxHistoryLimit = n
		}
	}
}

// WithFeed mounts the live result feed at /ws/battles.
func WithFeed(h http.Handler) Option {
	return func(s *Server) {
		s.feed = h
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		maxHistoryLimit:     defaultMaxHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.charactersHandler = NewCharactersHandler(deps)
	s.battlesHandler = NewBattlesHandler(deps)
	s.resultsHandler = NewResultsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLeaderboardLimit)
	s.rankHandler = NewRankHandler(deps)
	s.historyHandler = NewHistoryHandler(deps, s.maxHistoryLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, Recover(s.logger, MetricsMiddleware(h, endpoint)))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("GET /characters", "characters", s.charactersHandler.HandleList)
	route("GET /characters/{id}", "character", s.charactersHandler.HandleGet)
	route("POST /battles", "battles", s.battlesHandler.HandlePostBattle)
	route("POST /results", "results", s.resultsHandler.HandlePostResult)
	route("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("GET /rank/{player_id}", "rank", s.rankHandler.HandleGetRank)
	route("GET /history/{player_id}", "history", s.historyHandler.HandleGetHistory)

	if s.feed != nil {
		// hijacked connections bypass the response-writer wrappers
		mux.Handle("GET /ws/battles", s.feed)
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status code and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidResult):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, roster.ErrUnknownCharacter):
		return http.StatusNotFound, "unknown_character"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, repository.ErrDuplicateBattle):
		return http.StatusConflict, "duplicate_battle"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, battle.ErrNoOpponent),
		errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
