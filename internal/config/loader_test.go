package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/cryptoheroes/internal/config"
)

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given no overrides", t, func() {
		clearConfigEnv(t)
		cfg, err := config.Load(ctx)

		convey.Convey("Then defaults are loaded", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.RosterStaleAfter, convey.ShouldEqual, 6*time.Hour)
		})
	})

	convey.Convey("Given environment variables", t, func() {
		clearConfigEnv(t)
		t.Setenv("HEROES_ADDR", ":8080")
		t.Setenv("HEROES_QUEUE_SIZE", "500")
		t.Setenv("HEROES_WORKER_COUNT", "3")
		t.Setenv("HEROES_ROSTER_STALE_AFTER", "30m")
		t.Setenv("HEROES_COINGECKO_FETCH_DETAILS", "true")
		t.Setenv("HEROES_RANDOM_FACTOR_MIN", "1")
		t.Setenv("HEROES_RANDOM_FACTOR_MAX", "1")
		t.Setenv("HEROES_BATTLE_SEED", "42")

		cfg, err := config.Load(ctx)

		convey.Convey("Then they override the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			convey.So(cfg.RosterStaleAfter, convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.CoinGeckoFetchDetails, convey.ShouldBeTrue)
			convey.So(cfg.RandomFactorMin, convey.ShouldEqual, 1.0)
			convey.So(cfg.RandomFactorMax, convey.ShouldEqual, 1.0)
			convey.So(cfg.BattleSeed, convey.ShouldEqual, uint64(42))
		})
	})

	convey.Convey("Given a YAML file and env vars", t, func() {
		clearConfigEnv(t)
		path := filepath.Join(t.TempDir(), "heroes.yaml")
		yaml := []byte("addr: \":7000\"\nresults_backend: sqlite\nsqlite_path: /tmp/heroes.db\nreveal_delay_ms: 0\nworker_count: 4\n")
		convey.So(os.WriteFile(path, yaml, 0o600), convey.ShouldBeNil)
		t.Setenv("HEROES_CONFIG", path)
		t.Setenv("HEROES_WORKER_COUNT", "9")

		cfg, err := config.Load(ctx)

		convey.Convey("Then the file applies and env wins over it", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
			convey.So(cfg.ResultsBackend, convey.ShouldEqual, config.BackendSQLite)
			convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/heroes.db")
			convey.So(cfg.RevealDelayMS, convey.ShouldEqual, 0)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 9)
		})
	})

	convey.Convey("Given a missing config file", t, func() {
		clearConfigEnv(t)
		t.Setenv("HEROES_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

		_, err := config.Load(ctx)

		convey.Convey("Then loading fails with ErrLoadConfig", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an invalid override", t, func() {
		clearConfigEnv(t)
		t.Setenv("HEROES_CACHE_BACKEND", "memcached")

		_, err := config.Load(ctx)

		convey.Convey("Then loading fails with ErrInvalidConfig", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// clearConfigEnv unsets every HEROES_ variable for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] != '=' {
				continue
			}
			if key := kv[:i]; len(key) > len(config.EnvPrefix) && key[:len(config.EnvPrefix)] == config.EnvPrefix {
				t.Setenv(key, "")
				_ = os.Unsetenv(key)
			}
			break
		}
	}
}
