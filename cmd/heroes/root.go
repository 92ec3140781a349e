package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/cryptoheroes/internal/config"
	"github.com/okian/cryptoheroes/pkg/logger"
)

// newRootCmd builds the heroes command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "heroes",
		Short: "CryptoHeroes battle arena",
		Long: `CryptoHeroes turns the top cryptocurrencies into playable characters and
lets them battle. Configuration is read from the YAML file named by
` + config.EnvConfigFile + ` and from ` + config.EnvPrefix + `* environment variables.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newRosterCmd(),
		newBattleCmd(),
		newSimulateCmd(),
	)
	return root
}

// setup loads configuration and initializes the global logger from it.
func setup(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	initLog := logger.Init
	if cfg.LogFormat == "console" {
		initLog = logger.InitConsole
	}
	if err := initLog(); err != nil {
		return nil, nil, fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.Get()

	// invalid levels fall back to info
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
