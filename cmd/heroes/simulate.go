package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/cryptoheroes/internal/simulate"
	"github.com/okian/cryptoheroes/pkg/logger"
)

func newSimulateCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a running server with concurrent battles",
		Long: `Play battles against a running server over HTTP, then check that every
player's standing and the leaderboard agree with the outcomes received.

Examples:
  heroes simulate
  heroes simulate --battles 5000 --players 50 --workers 16
  heroes simulate --url http://localhost:8080 --rate 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := logger.InitConsole(); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			rep, err := simulate.New(cfg, logger.Get().Named("simulate")).Run(ctx)
			if err != nil {
				return err
			}

			printf(cmd, "battles: %d  ok: %d  duplicate: %d  failed: %d\n",
				rep.Battles, rep.Succeeded, rep.Duplicate, rep.Failed)
			printf(cmd, "wins: %d  losses: %d  draws: %d  players: %d  took: %s\n",
				rep.Wins, rep.Losses, rep.Draws, rep.Players, rep.Duration)
			for _, m := range rep.Mismatches {
				printf(cmd, "mismatch: %s\n", m)
			}
			if !rep.OK() {
				return fmt.Errorf("simulation found %d failed battles and %d mismatches", rep.Failed, len(rep.Mismatches))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Base URL of the service")
	f.IntVar(&cfg.Battles, "battles", cfg.Battles, "Number of battles to play")
	f.IntVar(&cfg.Players, "players", cfg.Players, "Number of distinct players")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent clients")
	f.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Battles per second (0 for unlimited)")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", cfg.Settle, "How long to wait for results to reach the leaderboard")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for matchups")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every failed battle")
	return cmd
}
