package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/cryptoheroes/internal/config"
	"github.com/okian/cryptoheroes/internal/domain/battle"
	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/internal/domain/roster"
	"github.com/okian/cryptoheroes/pkg/logger"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

// offlineEnv points the market data client at a server that always fails so
// the fixture roster is served.
func offlineEnv(t *testing.T) {
	t.Helper()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("HEROES_COINGECKO_BASE_URL", down.URL)
	t.Setenv("HEROES_LOG_LEVEL", "error")
	t.Setenv("HEROES_CACHE_BACKEND", config.BackendMemory)
	t.Setenv("HEROES_RESULTS_BACKEND", config.BackendMemory)
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func characterByID(id string) model.Character {
	for _, c := range roster.Fixtures() {
		if c.ID == id {
			return c
		}
	}
	return model.Character{}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every subcommand is registered", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			for _, want := range []string{"serve", "roster", "battle", "simulate"} {
				convey.So(names[want], convey.ShouldBeTrue)
			}
		})
	})
}

func TestBattleCommand(t *testing.T) {
	offlineEnv(t)

	convey.Convey("Given the battle command offline", t, func() {
		convey.Convey("When two known characters fight deterministically", func() {
			out, err := execute("battle", "bitcoin", "dogecoin", "--deterministic")
			convey.So(err, convey.ShouldBeNil)

			scorer, serr := battle.NewScorer()
			convey.So(serr, convey.ShouldBeNil)
			btc, doge := characterByID("bitcoin"), characterByID("dogecoin")
			want := scorer.FightExpected(btc, doge)

			convey.So(out, convey.ShouldContainSubstring,
				fmt.Sprintf("%s (%d) vs %s (%d): %s", btc.Name, want.PlayerScore, doge.Name, want.OpponentScore, want.Outcome))
		})

		convey.Convey("When several rounds are requested against the computer", func() {
			out, err := execute("battle", "solana", "--rounds", "3", "--seed", "42")
			convey.So(err, convey.ShouldBeNil)
			convey.So(bytes.Count([]byte(out), []byte("Solana (")), convey.ShouldEqual, 3)
		})

		convey.Convey("When a character is unknown", func() {
			_, err := execute("battle", "no-such-coin")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, roster.ErrUnknownCharacter.Error())
		})
	})
}

func TestRosterCommand(t *testing.T) {
	offlineEnv(t)

	convey.Convey("Given the roster command offline", t, func() {
		out, err := execute("roster")

		convey.Convey("Then the fixture roster is printed", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "origin: fixtures")
			for _, c := range roster.Fixtures() {
				convey.So(out, convey.ShouldContainSubstring, c.ID)
			}
		})

		convey.Convey("And a live refresh that fails still prints the fallback", func() {
			out, err := execute("roster", "--live")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "bitcoin")
		})
	})
}

func TestBuildServer(t *testing.T) {
	offlineEnv(t)

	convey.Convey("Given a server built from the default configuration", t, func() {
		ctx := context.Background()
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		cfg.RevealDelayMS = 0

		srv, svc, cleanup, err := buildServer(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer func() {
			_ = svc.Stop(ctx)
			_ = cleanup.Close()
		}()

		ts := httptest.NewServer(srv.Handler)
		defer ts.Close()

		convey.Convey("Then every surface is mounted", func() {
			for _, path := range []string{"/healthz", "/characters", "/leaderboard", "/api-docs", "/openapi.yaml", "/"} {
				resp, err := http.Get(ts.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

// gaugeValue scrapes the metrics registry and returns the value of the
// series whose name ends with suffix.
func gaugeValue(suffix string) float64 {
	w := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	for _, line := range strings.Split(w.Body.String(), "\n") {
		name, value, ok := strings.Cut(line, " ")
		if !ok || strings.HasPrefix(line, "#") || !strings.HasSuffix(name, suffix) {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return v
		}
	}
	return 0
}

func TestSystemMetricsUpdater(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(metrics.RefreshInterval(), convey.ShouldBeGreaterThan, 0)
		metrics.UpdateSystemGoroutineCount(0)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx, 5*time.Millisecond)
			close(done)
		}()

		convey.Convey("Then it refreshes gauges on its interval and stops with the context", func() {
			deadline := time.Now().Add(2 * time.Second)
			for gaugeValue("_system_goroutines") == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			convey.So(gaugeValue("_system_goroutines"), convey.ShouldBeGreaterThan, 0)

			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}
