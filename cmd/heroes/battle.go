package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/cryptoheroes/internal/domain/battle"
	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/internal/domain/roster"
)

func newBattleCmd() *cobra.Command {
	var (
		seed          uint64
		deterministic bool
		rounds        int
	)
	cmd := &cobra.Command{
		Use:   "battle <player> [opponent]",
		Short: "Fight one battle locally",
		Long: `Score a battle between two characters of the cached or fixture roster
without touching the leaderboard. Without an opponent a random one is picked.

Examples:
  heroes battle bitcoin dogecoin
  heroes battle solana --seed 42 --rounds 10
  heroes battle bitcoin ethereum --deterministic`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = cfg.BattleSeed
			}
			scorer, err := newScorer(cfg, seed, deterministic)
			if err != nil {
				return err
			}
			loader, closeCache, err := newLoader(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = closeCache() }()

			r, err := loader.Characters(ctx)
			if err != nil {
				return err
			}
			player, ok := r.Find(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", roster.ErrUnknownCharacter, args[0])
			}

			for i := 0; i < max(rounds, 1); i++ {
				opponent, err := pickOpponent(r, player, args, scorer)
				if err != nil {
					return err
				}
				printBattle(cmd, player, opponent, scorer.Fight(player, opponent))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default: config battle_seed, then the clock)")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "Fix the random factor at 1.0")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "Number of battles to fight")
	return cmd
}

func pickOpponent(r roster.Roster, player model.Character, args []string, scorer *battle.Scorer) (model.Character, error) {
	if len(args) < 2 {
		return battle.PickOpponent(r.Characters, player.ID, scorer.Source())
	}
	opponent, ok := r.Find(args[1])
	if !ok {
		return model.Character{}, fmt.Errorf("%w: %s", roster.ErrUnknownCharacter, args[1])
	}
	return opponent, nil
}

func printBattle(cmd *cobra.Command, player, opponent model.Character, res battle.Result) {
	winner := "nobody"
	switch res.WinnerID {
	case player.ID:
		winner = player.Name
	case opponent.ID:
		winner = opponent.Name
	}
	printf(cmd, "%s (%d) vs %s (%d): %s, winner %s\n",
		player.Name, res.PlayerScore, opponent.Name, res.OpponentScore, res.Outcome, winner)
}
