// Package app provides the core business service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cryptoheroes/internal/adapters/mq/queue"
	"github.com/okian/cryptoheroes/internal/adapters/mq/worker"
	"github.com/okian/cryptoheroes/internal/adapters/repository"
	"github.com/okian/cryptoheroes/internal/domain/battle"
	"github.com/okian/cryptoheroes/internal/domain/dedupe"
	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/internal/domain/roster"
	"github.com/okian/cryptoheroes/pkg/logger"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 50_000
)

// Service runs battles and feeds their results to the leaderboard.
type Service struct {
	mu sync.RWMutex

	roster  *roster.Loader
	scorer  *battle.Scorer
	results repository.Store

	deduper   dedupe.Deduper
	queue     queue.Queue
	pool      *worker.Pool
	publisher worker.Publisher

	workerCount int
	queueSize   int
	dedupeSize  int
	revealDelay time.Duration
	newID       func() string
	now         func() time.Time

	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service. The Service owns results and closes it on Stop.
func New(loader *roster.Loader, scorer *battle.Scorer, results repository.Store, opts ...Option) *Service {
	s := &Service{
		roster:      loader,
		scorer:      scorer,
		results:     results,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		newID:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start initializes the result pipeline and warms the roster cache.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	poolOpts := []worker.PoolOption{worker.WithPoolLogger(s.logger.Named("workers"))}
	if s.publisher != nil {
		poolOpts = append(poolOpts, worker.WithPoolPublisher(s.publisher))
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, s.results, poolOpts...)
	s.pool.Start(context.WithoutCancel(ctx))

	go func() {
		r, err := s.roster.Characters(ctx)
		if err != nil {
			s.logger.Warn(ctx, "roster warm-up failed", logger.Error(err))
			return
		}
		s.logger.Info(ctx, "roster ready",
			logger.String("origin", string(r.Origin)),
			logger.Int("characters", len(r.Characters)),
		)
	}()

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "battle service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued results into the store and closes it.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping battle service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.results.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close result store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "battle service stopped", logger.Int("recorded", int(s.pool.Processed())))
	if len(errs) > 0 {
		return fmt.Errorf("stop service: %v", errs)
	}
	return nil
}

// Characters returns the current roster.
func (s *Service) Characters(ctx context.Context) (roster.Roster, error) {
	return s.roster.Characters(ctx)
}

// Character returns one character of the current roster.
func (s *Service) Character(ctx context.Context, id string) (model.Character, error) {
	return s.roster.Find(ctx, id)
}

// Battle scores a battle and queues its result. Without an opponent a
// random character other than the player's is chosen. The response is held
// back by the reveal delay; a caller that gives up meanwhile leaves no
// result behind.
func (s *Service) Battle(ctx context.Context, req model.BattleRequest) (model.BattleResult, error) {
	s.mu.RLock()
	started, deduper, q := s.started, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return model.BattleResult{}, ErrNotStarted
	}

	ros, err := s.roster.Characters(ctx)
	if err != nil {
		return model.BattleResult{}, err
	}

	playerCharID := strings.TrimSpace(req.PlayerCharacterID)
	player, ok := ros.Find(playerCharID)
	if !ok {
		return model.BattleResult{}, fmt.Errorf("%w: %s", roster.ErrUnknownCharacter, playerCharID)
	}

	mode := model.ModePvP
	var opponent model.Character
	if oppID := strings.TrimSpace(req.OpponentCharacterID); oppID == "" {
		mode = model.ModeComputer
		if opponent, err = battle.PickOpponent(ros.Characters, player.ID, s.scorer.Source()); err != nil {
			return model.BattleResult{}, err
		}
	} else if opponent, ok = ros.Find(oppID); !ok {
		return model.BattleResult{}, fmt.Errorf("%w: %s", roster.ErrUnknownCharacter, oppID)
	}

	battleID := strings.TrimSpace(req.BattleID)
	if battleID == "" {
		battleID = s.newID()
	}
	if deduper.SeenAndRecord(ctx, battleID) {
		metrics.RecordResultDuplicate()
		return model.BattleResult{}, fmt.Errorf("battle %s: %w", battleID, repository.ErrDuplicateBattle)
	}

	fight := s.scorer.Fight(player, opponent)
	res := model.BattleResult{
		BattleID:      battleID,
		Mode:          mode,
		Player:        player,
		Opponent:      opponent,
		PlayerScore:   fight.PlayerScore,
		OpponentScore: fight.OpponentScore,
		Outcome:       fight.Outcome,
		WinnerID:      fight.WinnerID,
		PlayedAt:      s.now().UTC(),
	}

	// The lock is not held here, so Stop may close q meanwhile; Enqueue then
	// fails with queue.ErrClosed.
	if err := s.reveal(ctx); err != nil {
		deduper.Unrecord(ctx, battleID)
		return model.BattleResult{}, err
	}

	if err := q.Enqueue(ctx, res.ToGameResult(strings.TrimSpace(req.PlayerID))); err != nil {
		deduper.Unrecord(ctx, battleID)
		return model.BattleResult{}, fmt.Errorf("queue battle %s: %w", battleID, err)
	}

	metrics.RecordBattle(mode, string(res.Outcome), res.PlayerScore, res.OpponentScore)
	s.logger.Debug(ctx, "battle finished",
		logger.String("battle_id", battleID),
		logger.String("mode", mode),
		logger.String("player", player.ID),
		logger.String("opponent", opponent.ID),
		logger.Int("player_score", res.PlayerScore),
		logger.Int("opponent_score", res.OpponentScore),
		logger.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

func (s *Service) reveal(ctx context.Context) error {
	if s.revealDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.revealDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitResult queues an externally produced result. duplicate reports a
// battle id that was already seen.
func (s *Service) SubmitResult(ctx context.Context, res model.GameResult) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, res.BattleID) {
		metrics.RecordResultDuplicate()
		s.logger.Debug(ctx, "duplicate result", logger.String("battle_id", res.BattleID))
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, res); err != nil {
		s.deduper.Unrecord(ctx, res.BattleID)
		return false, fmt.Errorf("queue result %s: %w", res.BattleID, err)
	}
	return false, nil
}

// TopN returns the top n standings.
func (s *Service) TopN(ctx context.Context, n int) ([]model.Standing, error) {
	return s.results.TopN(ctx, n)
}

// Rank returns the standing of playerID.
func (s *Service) Rank(ctx context.Context, playerID string) (model.Standing, error) {
	return s.results.Rank(ctx, playerID)
}

// History returns recent results of playerID, newest first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]model.GameResult, error) {
	return s.results.History(ctx, playerID, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":          s.started,
		"worker_count":     s.workerCount,
		"queue_capacity":   s.queueSize,
		"dedupe_capacity":  s.dedupeSize,
		"reveal_delay_ms":  s.revealDelay.Milliseconds(),
		"roster_stale_sec": int(s.roster.StaleAfter().Seconds()),
	}

	if s.started {
		queueLen := s.queue.Len()
		players := s.results.Count(ctx)

		stats["queue_length"] = queueLen
		stats["players"] = players
		stats["recorded"] = s.pool.Processed()
		stats["dedupe_size"] = s.deduper.Size()
		stats["uptime_sec"] = int(s.now().Sub(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalPlayers(players)
	}
	return stats
}
