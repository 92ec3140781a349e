// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects json lines or the console writer.
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory result queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`
	// WorkerCount sets the number of result workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`
	// DedupeSize sets how many battle ids are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size" validate:"gt=0"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"gt=0"`

	RosterStaleAfter time.Duration `koanf:"roster_stale_after" validate:"gt=0"`
	RosterRetention  time.Duration `koanf:"roster_retention" validate:"gtefield=RosterStaleAfter"`

	CacheBackend  string `koanf:"cache_backend" validate:"oneof=memory redis"`
	RedisAddr     string `koanf:"redis_addr" validate:"required_if=CacheBackend redis"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0"`

	ResultsBackend string `koanf:"results_backend" validate:"oneof=memory sqlite"`
	SQLitePath     string `koanf:"sqlite_path" validate:"required_if=ResultsBackend sqlite"`

	CoinGeckoBaseURL      string        `koanf:"coingecko_base_url" validate:"required,url"`
	CoinGeckoPerPage      int           `koanf:"coingecko_per_page" validate:"gt=0,lte=250"`
	CoinGeckoFetchDetails bool          `koanf:"coingecko_fetch_details"`
	CoinGeckoRPM          int           `koanf:"coingecko_rpm" validate:"gt=0"`
	CoinGeckoTimeout      time.Duration `koanf:"coingecko_timeout" validate:"gt=0"`

	// BattleSeed seeds the battle random source; 0 picks a random seed.
	BattleSeed      uint64  `koanf:"battle_seed"`
	RandomFactorMin float64 `koanf:"random_factor_min" validate:"gt=0"`
	RandomFactorMax float64 `koanf:"random_factor_max" validate:"gtefield=RandomFactorMin"`
	// RevealDelayMS holds a battle response back before the outcome is revealed.
	RevealDelayMS int `koanf:"reveal_delay_ms" validate:"gte=0"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "json",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            50_000,
		MaxLeaderboardLimit:   100,
		RosterStaleAfter:      6 * time.Hour,
		RosterRetention:       7 * 24 * time.Hour,
		CacheBackend:          BackendMemory,
		ResultsBackend:        BackendMemory,
		SQLitePath:            "cryptoheroes.db",
		CoinGeckoBaseURL:      "https://api.coingecko.com/api/v3",
		CoinGeckoPerPage:      100,
		CoinGeckoRPM:          30,
		CoinGeckoTimeout:      10 * time.Second,
		RandomFactorMin:       0.9,
		RandomFactorMax:       1.1,
		RevealDelayMS:         2500,
	}
}

// RevealDelay returns RevealDelayMS as a duration.
func (c *Config) RevealDelay() time.Duration {
	return time.Duration(c.RevealDelayMS) * time.Millisecond
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
