package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/app"
	"github.com/jwulff/speakerdash/internal/logging"
	"github.com/jwulff/speakerdash/internal/upload"
)

func newTUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, ctx)
		},
	}
}

func runTUI(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: "json",
		File:   cfg.Logging.File,
		ToFile: true,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client := newClient(cfg, logger)
	opts := upload.DefaultOptions()
	opts.Heartbeat = cfg.Heartbeat()
	opts.IdentifyAfter = cfg.IdentifyAfter()
	opts.Reveal = cfg.Reveal()

	model := app.New(app.Options{
		Client:              client,
		Uploads:             upload.NewController(client, opts, logger),
		Logger:              logger,
		Context:             runCtx,
		MatchThreshold:      cfg.Upload.MatchThreshold,
		AutoUpdateThreshold: cfg.Upload.AutoUpdateThreshold,
	})

	logger.Info().Str("api", cfg.API.BaseURL).Msg("dashboard started")
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(runCtx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
