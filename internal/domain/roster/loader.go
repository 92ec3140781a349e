// Package roster loads the playable character roster, caching synthesized
// characters in a key-value store and falling back to stale data and then to
// static fixtures when the market-data provider is unavailable.
package roster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/okian/cryptoheroes/internal/adapters/kv"
	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/internal/domain/synth"
	"github.com/okian/cryptoheroes/pkg/logger"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

// Defaults for the caching policy.
const (
	DefaultStaleAfter = 6 * time.Hour
	DefaultRetention  = 7 * 24 * time.Hour
	DefaultCacheKey   = "roster:snapshot"

	// DefaultRetryBackoff is how long a failed refresh suppresses further
	// attempts from ordinary reads.
	DefaultRetryBackoff = time.Minute
)

// Origin tells where a roster came from.
type Origin string

const (
	OriginCache    Origin = "cache"
	OriginLive     Origin = "live"
	OriginStale    Origin = "stale"
	OriginFixtures Origin = "fixtures"
)

// Fetcher supplies raw market records.
type Fetcher interface {
	FetchMarkets(ctx context.Context) ([]model.MarketRecord, error)
}

// Roster is a full set of characters plus where and when it was obtained.
type Roster struct {
	Characters []model.Character `json:"characters"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Origin     Origin            `json:"origin"`
}

// Find returns the character with id.
func (r Roster) Find(id string) (model.Character, bool) {
	for _, c := range r.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return model.Character{}, false
}

// snapshot is the cached representation: characters and their fetch time
// are always stored together under one key.
type snapshot struct {
	Characters []model.Character `msgpack:"characters"`
	FetchedAt  time.Time         `msgpack:"fetched_at"`
}

// Loader serves rosters according to the caching policy.
type Loader struct {
	store      kv.Store
	fetcher    Fetcher
	key        string
	staleAfter time.Duration
	retention  time.Duration
	backoff    time.Duration
	now        func() time.Time
	group      singleflight.Group
	log        logger.Logger

	failMu   sync.Mutex
	failedAt time.Time
}

// NewLoader creates a Loader. A nil fetcher serves cache and fixtures only.
func NewLoader(store kv.Store, fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		store:      store,
		fetcher:    fetcher,
		key:        DefaultCacheKey,
		staleAfter: DefaultStaleAfter,
		retention:  DefaultRetention,
		backoff:    DefaultRetryBackoff,
		now:        time.Now,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.retention < l.staleAfter {
		l.retention = l.staleAfter
	}
	return l
}

// StaleAfter returns the configured staleness window.
func (l *Loader) StaleAfter() time.Duration {
	return l.staleAfter
}

// Characters returns the current roster. A fresh snapshot is served from the
// store; otherwise one refetch is attempted (concurrent callers share it)
// before falling back to the stale snapshot and then to fixtures. After a
// failed refetch the fallback is served without retrying until the backoff
// has passed.
func (l *Loader) Characters(ctx context.Context) (Roster, error) {
	if err := ctx.Err(); err != nil {
		return Roster{}, err
	}

	snap, ok := l.read(ctx)
	if ok && l.now().Sub(snap.FetchedAt) < l.staleAfter {
		return l.served(Roster{Characters: snap.Characters, FetchedAt: snap.FetchedAt, Origin: OriginCache}), nil
	}

	fallback := func() Roster {
		if ok {
			return Roster{Characters: snap.Characters, FetchedAt: snap.FetchedAt, Origin: OriginStale}
		}
		return l.fixtures()
	}
	if l.backingOff() {
		return l.served(fallback()), nil
	}

	v, _, _ := l.group.Do(l.key, func() (any, error) {
		// detached so one caller giving up does not fail the others
		fresh, err := l.fetch(context.WithoutCancel(ctx))
		if err == nil {
			return fresh, nil
		}
		l.log.Warn(ctx, "roster refresh failed, falling back", logger.Error(err))
		return fallback(), nil
	})
	return l.served(v.(Roster)), nil
}

func (l *Loader) backingOff() bool {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	return !l.failedAt.IsZero() && l.now().Sub(l.failedAt) < l.backoff
}

func (l *Loader) setFailed(failed bool) {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	if failed {
		l.failedAt = l.now()
	} else {
		l.failedAt = time.Time{}
	}
}

// Refresh forces a refetch. On failure the error is returned together with
// the best fallback roster.
func (l *Loader) Refresh(ctx context.Context) (Roster, error) {
	v, err, _ := l.group.Do(l.key+":forced", func() (any, error) {
		return l.fetch(ctx)
	})
	if err == nil {
		return l.served(v.(Roster)), nil
	}
	if snap, ok := l.read(ctx); ok {
		return l.served(Roster{Characters: snap.Characters, FetchedAt: snap.FetchedAt, Origin: OriginStale}), err
	}
	return l.served(l.fixtures()), err
}

// Find returns one character of the current roster.
func (l *Loader) Find(ctx context.Context, id string) (model.Character, error) {
	r, err := l.Characters(ctx)
	if err != nil {
		return model.Character{}, err
	}
	if c, ok := r.Find(id); ok {
		return c, nil
	}
	return model.Character{}, fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
}

// fetch pulls market records, synthesizes characters and stores the
// snapshot. An empty result counts as a failure.
func (l *Loader) fetch(ctx context.Context) (Roster, error) {
	if l.fetcher == nil {
		return Roster{}, ErrNoFetcher
	}
	records, err := l.fetcher.FetchMarkets(ctx)
	if err != nil {
		l.setFailed(true)
		return Roster{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	now := l.now()
	seen := make(map[string]struct{}, len(records))
	chars := make([]model.Character, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		chars = append(chars, synth.ToCharacter(rec, now))
	}
	if len(chars) == 0 {
		l.setFailed(true)
		return Roster{}, fmt.Errorf("%w: provider returned no records", ErrRefreshFailed)
	}
	l.setFailed(false)

	snap := snapshot{Characters: chars, FetchedAt: now.UTC()}
	l.write(ctx, snap)
	return Roster{Characters: chars, FetchedAt: snap.FetchedAt, Origin: OriginLive}, nil
}

func (l *Loader) read(ctx context.Context) (snapshot, bool) {
	if l.store == nil {
		return snapshot{}, false
	}
	raw, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		metrics.RecordCacheError()
		l.log.Error(ctx, "roster cache read failed", logger.Error(err))
		return snapshot{}, false
	}
	if !found {
		metrics.RecordCacheMiss()
		return snapshot{}, false
	}

	var snap snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil || len(snap.Characters) == 0 {
		metrics.RecordCacheError()
		l.log.Warn(ctx, "discarding unreadable roster snapshot", logger.Error(err))
		return snapshot{}, false
	}
	metrics.RecordCacheHit()
	snap.FetchedAt = snap.FetchedAt.UTC()
	for i := range snap.Characters {
		snap.Characters[i].LastUpdated = snap.Characters[i].LastUpdated.UTC()
	}
	return snap, true
}

func (l *Loader) write(ctx context.Context, snap snapshot) {
	if l.store == nil {
		return
	}
	raw, err := msgpack.Marshal(&snap)
	if err != nil {
		metrics.RecordCacheError()
		l.log.Error(ctx, "roster snapshot encode failed", logger.Error(err))
		return
	}
	if err := l.store.Set(ctx, l.key, raw, l.retention); err != nil {
		metrics.RecordCacheError()
		l.log.Error(ctx, "roster cache write failed", logger.Error(err))
		return
	}
	metrics.RecordCacheSet()
}

func (l *Loader) fixtures() Roster {
	return Roster{Characters: Fixtures(), Origin: OriginFixtures}
}

func (l *Loader) served(r Roster) Roster {
	metrics.RecordRosterLoad(string(r.Origin), len(r.Characters))
	return r
}
