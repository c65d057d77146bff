package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avstrong/roomledger/internal/app"
	"github.com/avstrong/roomledger/internal/migration"
	"github.com/avstrong/roomledger/internal/transport/web"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the payment window sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}

			return app.Run(cmd.Context(), l, cfg) //nolint:wrapcheck
		},
	}
}

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue prepayment holds once and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}

			services, err := app.NewServices(cmd.Context(), l, cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}
			defer services.Close()

			results := services.Sweeper.Sweep(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("print results: %w", err)
			}

			for _, r := range results {
				if r.Err != nil {
					return fmt.Errorf("sweep left %s: %w", r.Reference, r.Err)
				}
			}

			return nil
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}

			db, err := app.OpenPostgres(cmd.Context(), l, cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}
			defer db.Close()

			l.LogInfo("Schema is up to date")

			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo properties and open inventory in PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := opts.load()
			if err != nil {
				return err
			}

			db, err := app.OpenPostgres(cmd.Context(), l, cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}
			defer db.Close()

			return migration.Seed(cmd.Context(), l, db, time.Now().UTC()) //nolint:wrapcheck
		},
	}
}

func newStaffTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "staff-token",
		Short: "Issue a bearer token for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			token, err := web.IssueStaffToken(cfg.StaffJWTSecret, subject, ttl, time.Now().UTC())
			if err != nil {
				return err //nolint:wrapcheck
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

			return err //nolint:wrapcheck
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "staff", "name recorded as blocked_by and resolved_by")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime") //nolint:gomnd

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roomledger %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
