package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then playerID ASC (deterministic). "less" means
// ranks earlier, so an in-order traversal yields the leaderboard from best
// to worst. Subtree sizes make rank lookups O(log n).

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int) *node {
	if n == nil {
		return &node{id: id, score: score, prio: rand.Uint64(), size: 1} //nolint:gosec // heap priority, not crypto
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many players have a strictly higher score.
func countAbove(n *node, score int) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit ids in leaderboard order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type playerState struct {
	standing model.Standing
	usage    map[string]int
	history  []model.GameResult // oldest first
}

// TreapStore keeps standings in an order-statistics treap and the most
// recent results per player in memory.
type TreapStore struct {
	mu                    sync.RWMutex
	root                  *node
	byID                  map[string]*playerState
	battles               map[string]struct{}
	historySize           int
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options. A
// background goroutine publishes the player count until ctx is done or
// Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]*playerState),
		battles:               make(map[string]struct{}),
		historySize:           defaultHistorySize,
		metricsUpdateInterval: metrics.RefreshInterval(),
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Record implements Store.Record in O(log n) expected time.
func (s *TreapStore) Record(ctx context.Context, res model.GameResult) (model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	res, err := normalize(res, s.now)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_result")
		return model.Standing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.battles[res.BattleID]; dup {
		metrics.RecordErrorByComponent("repository", "duplicate")
		return model.Standing{}, ErrDuplicateBattle
	}
	s.battles[res.BattleID] = struct{}{}

	st, ok := s.byID[res.PlayerID]
	if ok {
		s.root = deleteNode(s.root, res.PlayerID, st.standing.Score)
	} else {
		st = &playerState{
			standing: model.Standing{PlayerID: res.PlayerID},
			usage:    make(map[string]int),
		}
		s.byID[res.PlayerID] = st
	}

	applyOutcome(&st.standing, res.Outcome, res.PlayedAt)
	st.usage[res.PlayerCharacterID]++
	st.standing.FavoriteCharacter = favorite(st.usage)
	st.history = append(st.history, res)
	if len(st.history) > s.historySize {
		st.history = append(st.history[:0], st.history[len(st.history)-s.historySize:]...)
	}

	s.root = insert(s.root, res.PlayerID, st.standing.Score)

	out := st.standing
	out.Rank = countAbove(s.root, out.Score) + 1
	return out, nil
}

// Rank returns the current standing for a player in O(log n).
func (s *TreapStore) Rank(ctx context.Context, playerID string) (model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Standing{}, ErrNotFound
	}
	out := st.standing
	out.Rank = countAbove(s.root, out.Score) + 1
	return out, nil
}

// TopN returns the top N standings.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]model.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &ids)

	out := make([]model.Standing, len(ids))
	for i, id := range ids {
		out[i] = s.byID[id].standing
	}
	ranks(out, 1)
	return out, nil
}

// History returns up to limit results for a player, newest first.
func (s *TreapStore) History(ctx context.Context, playerID string, limit int) ([]model.GameResult, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	n := min(limit, len(st.history))
	out := make([]model.GameResult, 0, n)
	for i := len(st.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, st.history[i])
	}
	return out, nil
}

// Count returns the total number of players.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTotalPlayers(s.Count(ctx))
			}
		}
	}()
}
