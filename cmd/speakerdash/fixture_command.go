package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/config"
	"github.com/jwulff/speakerdash/internal/db"
	"github.com/jwulff/speakerdash/internal/fixture"
)

func newFixtureCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Run the local reference backend",
	}
	cmd.AddCommand(newFixtureServeCommand(ctx))
	return cmd
}

func newFixtureServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var dbPath string
	var seed bool
	var uploadDelay time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backend REST API from a local SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) == "" {
				addr = cfg.Fixture.Addr
			}
			if strings.TrimSpace(dbPath) == "" {
				dbPath = cfg.Fixture.DBPath
			}
			if strings.TrimSpace(dbPath) == "" {
				dbPath = db.DefaultDBPath()
			}
			if dbPath != ":memory:" {
				expanded, err := config.ExpandPath(dbPath)
				if err != nil {
					return fmt.Errorf("resolve database path: %w", err)
				}
				dbPath = expanded
			}

			logger, closer, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			store, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if seed {
				if err := store.Seed(runCtx); err != nil {
					return fmt.Errorf("seed database: %w", err)
				}
			}

			srv := fixture.New(store, fixture.WithLogger(logger), fixture.WithUploadDelay(uploadDelay))
			logger.Info().Str("db", dbPath).Bool("seed", seed).Msg("fixture backend ready")
			return srv.ListenAndServe(runCtx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to fixture.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path, or :memory:")
	cmd.Flags().BoolVar(&seed, "seed", true, "Load demo data into an empty database")
	cmd.Flags().DurationVar(&uploadDelay, "upload-delay", 0, "Artificial processing time for uploads")
	return cmd
}
