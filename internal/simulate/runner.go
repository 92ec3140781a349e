package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/pkg/logger"
)

const (
	pollInterval   = 250 * time.Millisecond
	progressPeriod = time.Second
	computerShare  = 4 // one battle in computerShare is against the computer
)

type rosterResponse struct {
	Characters []model.Character `json:"characters"`
	Origin     string            `json:"origin"`
}

// tally is the client-side view of one player's results.
type tally struct {
	wins, losses, draws int
}

func (t tally) score() int {
	return t.wins*model.OutcomeWin.Points() + t.draws*model.OutcomeDraw.Points()
}

func (t tally) played() int { return t.wins + t.losses + t.draws }

// Runner plays battles against a server.
type Runner struct {
	cfg    Config
	client *httpClient
	log    logger.Logger
	runID  string
}

// New creates a Runner. A nil logger discards output.
func New(cfg Config, log logger.Logger) *Runner {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		cfg:    cfg,
		client: newHTTPClient(strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout),
		log:    log,
		runID:  uuid.NewString()[:8],
	}
}

// Run executes the complete simulation. Players are namespaced by a run id
// so earlier runs against the same server do not skew the checks.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	r.log.Info(ctx, "starting battle simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("battles", r.cfg.Battles),
		logger.Int("players", r.cfg.Players),
		logger.Int("workers", r.cfg.Workers),
		logger.Float64("rate", r.cfg.Rate),
		logger.String("run", r.runID),
	)

	if err := r.client.getJSON(ctx, "/healthz", nil); err != nil {
		return Report{}, fmt.Errorf("service health check failed: %w", err)
	}

	var ros rosterResponse
	if err := r.client.getJSON(ctx, "/characters", &ros); err != nil {
		return Report{}, fmt.Errorf("fetch roster: %w", err)
	}
	if len(ros.Characters) < 2 {
		return Report{}, fmt.Errorf("roster too small: %d characters", len(ros.Characters))
	}
	r.log.Info(ctx, "roster loaded", logger.Int("characters", len(ros.Characters)), logger.String("origin", ros.Origin))

	plan := r.plan(ros.Characters)
	rep, tallies := r.play(ctx, plan)

	if err := r.settle(ctx, tallies); err != nil {
		rep.Mismatches = append(rep.Mismatches, err.Error())
	}
	mismatches, err := r.verify(ctx, tallies)
	if err != nil {
		return rep, fmt.Errorf("verify results: %w", err)
	}
	rep.Mismatches = append(rep.Mismatches, mismatches...)
	rep.Players = len(tallies)
	rep.Duration = time.Since(start)

	r.log.Info(ctx, "simulation finished",
		logger.Int("succeeded", rep.Succeeded),
		logger.Int("duplicate", rep.Duplicate),
		logger.Int("failed", rep.Failed),
		logger.Int("wins", rep.Wins),
		logger.Int("losses", rep.Losses),
		logger.Int("draws", rep.Draws),
		logger.Int("mismatches", len(rep.Mismatches)),
		logger.String("duration", rep.Duration.String()),
	)
	return rep, nil
}

func (r *Runner) playerID(i int) string {
	return fmt.Sprintf("sim-%s-%03d", r.runID, i)
}

// plan builds the battle requests up front so a seed fixes the matchups.
func (r *Runner) plan(chars []model.Character) []model.BattleRequest {
	rng := rand.New(rand.NewPCG(r.cfg.Seed, r.cfg.Seed^0x5DEECE66D)) //nolint:gosec // load generation
	out := make([]model.BattleRequest, r.cfg.Battles)
	for i := range out {
		req := model.BattleRequest{
			BattleID:          fmt.Sprintf("%s-%d", r.runID, i),
			PlayerID:          r.playerID(rng.IntN(r.cfg.Players)),
			PlayerCharacterID: chars[rng.IntN(len(chars))].ID,
		}
		if rng.IntN(computerShare) != 0 {
			req.OpponentCharacterID = chars[rng.IntN(len(chars))].ID
		}
		out[i] = req
	}
	return out
}

func (r *Runner) play(ctx context.Context, plan []model.BattleRequest) (Report, map[string]tally) {
	var (
		mu        sync.Mutex
		tallies   = make(map[string]tally)
		rep       = Report{Battles: len(plan)}
		submitted atomic.Int64
	)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate), 1)
	}

	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go r.progress(progressCtx, &submitted, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, req := range plan {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			var res model.BattleResult
			err := r.client.postJSON(gctx, "/battles", req, &res)
			submitted.Add(1)

			mu.Lock()
			defer mu.Unlock()
			var se *statusError
			switch {
			case err == nil:
				rep.Succeeded++
				t := tallies[req.PlayerID]
				switch res.Outcome {
				case model.OutcomeWin:
					t.wins++
					rep.Wins++
				case model.OutcomeLose:
					t.losses++
					rep.Losses++
				default:
					t.draws++
					rep.Draws++
				}
				tallies[req.PlayerID] = t
			case errors.As(err, &se) && se.Status == http.StatusConflict:
				rep.Duplicate++
			default:
				rep.Failed++
				if r.cfg.Verbose {
					r.log.Warn(gctx, "battle failed", logger.String("battle_id", req.BattleID), logger.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Failed += len(plan) - rep.Succeeded - rep.Duplicate - rep.Failed
	return rep, tallies
}

func (r *Runner) progress(ctx context.Context, submitted *atomic.Int64, total int) {
	t := time.NewTicker(progressPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.log.Info(ctx, "progress", logger.Int("submitted", int(submitted.Load())), logger.Int("total", total))
		}
	}
}

// settle waits until every player's standing reflects the local tally.
func (r *Runner) settle(ctx context.Context, tallies map[string]tally) error {
	deadline := time.Now().Add(r.cfg.Settle)
	for {
		pending := 0
		for id, t := range tallies {
			var st model.Standing
			if err := r.client.getJSON(ctx, "/rank/"+url.PathEscape(id), &st); err != nil || st.Played() < t.played() {
				pending++
			}
		}
		if pending == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d players still pending after %s", pending, r.cfg.Settle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
