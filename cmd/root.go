// Package cmd defines the harvester CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/config"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
)

type envKey struct{}

// cliEnv is what PersistentPreRunE hands to subcommands.
type cliEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadConfig is swapped in tests.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests job listings and recruiter contacts from StepStone.",
		Long: `harvester walks the StepStone listing index, extracts every job detail page
through a pool of remote browser sessions, resolves recruiter contacts and
appends one row per job to a CSV file.

Settings come from the optional --config file, HARVESTER_* environment
variables and a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &cliEnv{cfg: cfg, logger: logger}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newHarvestCmd())
	return cmd
}

func envFrom(ctx context.Context) (*cliEnv, error) {
	rt, ok := ctx.Value(envKey{}).(*cliEnv)
	if !ok || rt == nil {
		return nil, errors.New("configuration not initialized")
	}
	return rt, nil
}

// Execute runs the root command with ctx, which is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return fmt.Errorf("harvester: %w", err)
	}
	return nil
}
