package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/cryptoheroes/internal/domain/roster"
	"github.com/okian/cryptoheroes/pkg/logger"
)

func newRosterCmd() *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print the character roster",
		Long: `Print the current roster with synthesized stats. The cached snapshot is
used while fresh; --live forces a refetch from CoinGecko.

Examples:
  heroes roster
  heroes roster --live`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			loader, closeCache, err := newLoader(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = closeCache() }()

			r, err := loadRoster(ctx, loader, live)
			if err != nil {
				// a fallback roster is still printed
				log.Warn(ctx, "live refresh failed", logger.Error(err))
			}
			return printRoster(cmd, r)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Force a refetch from CoinGecko")
	return cmd
}

func loadRoster(ctx context.Context, loader *roster.Loader, live bool) (roster.Roster, error) {
	if live {
		return loader.Refresh(ctx)
	}
	return loader.Characters(ctx)
}

func printRoster(cmd *cobra.Command, r roster.Roster) error {
	fetched := "-"
	if !r.FetchedAt.IsZero() {
		fetched = r.FetchedAt.Format(time.RFC3339)
	}
	printf(cmd, "origin: %s  fetched: %s  characters: %d\n\n", r.Origin, fetched, len(r.Characters))

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tSYMBOL\tSTR\tSPD\tINT\tCHA\tNAME")
	for _, c := range r.Characters {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			c.Rank, c.ID, c.Symbol,
			c.Stats.Strength, c.Stats.Speed, c.Stats.Intelligence, c.Stats.Charisma,
			c.Name)
	}
	return tw.Flush()
}
