package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/cryptoheroes/internal/adapters/kv"
	"github.com/okian/cryptoheroes/internal/adapters/marketdata"
	"github.com/okian/cryptoheroes/internal/adapters/repository"
	"github.com/okian/cryptoheroes/internal/config"
	"github.com/okian/cryptoheroes/internal/domain/battle"
	"github.com/okian/cryptoheroes/internal/domain/roster"
	"github.com/okian/cryptoheroes/pkg/logger"
)

// closers collects cleanup functions run in reverse order.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newCache opens the roster cache backend.
func newCache(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rs, err := kv.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return rs, rs.Close, nil
	default:
		return kv.NewMemoryStore(), func() error { return nil }, nil
	}
}

// newLoader wires the market data client and cache into a roster loader.
func newLoader(ctx context.Context, cfg *config.Config, log logger.Logger) (*roster.Loader, func() error, error) {
	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := marketdata.NewClient(
		marketdata.WithBaseURL(cfg.CoinGeckoBaseURL),
		marketdata.WithPerPage(cfg.CoinGeckoPerPage),
		marketdata.WithRequestsPerMinute(cfg.CoinGeckoRPM),
		marketdata.WithTimeout(cfg.CoinGeckoTimeout),
		marketdata.WithDetails(cfg.CoinGeckoFetchDetails),
		marketdata.WithLogger(log.Named("coingecko")),
	)
	loader := roster.NewLoader(cache, client,
		roster.WithStaleAfter(cfg.RosterStaleAfter),
		roster.WithRetention(cfg.RosterRetention),
		roster.WithLogger(log.Named("roster")),
	)
	return loader, closeCache, nil
}

// newScorer builds the battle scorer. A zero seed is replaced by the clock;
// deterministic pins the random factor to 1.0.
func newScorer(cfg *config.Config, seed uint64, deterministic bool) (*battle.Scorer, error) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // non-negative
	}
	var src battle.Source = battle.NewRandSource(seed)
	if deterministic {
		src = battle.FixedSource(0.5)
	}
	return battle.NewScorer(
		battle.WithFactorRange(cfg.RandomFactorMin, cfg.RandomFactorMax),
		battle.WithSource(src),
	)
}

// newResultStore opens the configured leaderboard backend.
func newResultStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.ResultsBackend {
	case config.BackendSQLite:
		return repository.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return repository.NewTreapStore(ctx), nil
	}
}
