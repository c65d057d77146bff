package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avstrong/roomledger/internal/app"
	"github.com/avstrong/roomledger/internal/config"
	"github.com/avstrong/roomledger/internal/logger"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type options struct {
	envFile string
}

func NewRoot() *cobra.Command {
	opts := &options{envFile: ".env"}

	cmd := &cobra.Command{
		Use:           "roomledger",
		Short:         "Room inventory and booking lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", opts.envFile, "dotenv file read before the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newSweepCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newStaffTokenCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func (o *options) load() (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	l, err := app.NewLogger(cfg)
	if err != nil {
		return config.Config{}, nil, err //nolint:wrapcheck
	}

	return cfg, l, nil
}
