package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
	"github.com/jwulff/speakerdash/internal/upload"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var displayName string
	var match float64
	var autoUpdate float64

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a recording for transcription and speaker identification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("match-threshold") {
				match = cfg.Upload.MatchThreshold
			}
			if !cmd.Flags().Changed("auto-update-threshold") {
				autoUpdate = cfg.Upload.AutoUpdateThreshold
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat recording: %w", err)
			}

			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				opts := upload.DefaultOptions()
				opts.Heartbeat = cfg.Heartbeat()
				opts.IdentifyAfter = cfg.IdentifyAfter()
				opts.Reveal = cfg.Reveal()
				controller := upload.NewController(client, opts, logger)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploading %s (%s)\n", filepath.Base(path), format.Bytes(info.Size()))
				printed := 0
				sess, err := controller.Run(runCtx, api.UploadRequest{
					FileName:            filepath.Base(path),
					File:                f,
					Size:                info.Size(),
					DisplayName:         displayName,
					MatchThreshold:      match,
					AutoUpdateThreshold: autoUpdate,
				}, func(s *upload.Session) {
					lines := s.LogLines()
					for ; printed < len(lines); printed++ {
						fmt.Fprintln(out, lines[printed])
					}
				})
				if err != nil {
					if runCtx.Err() != nil {
						return context.Canceled
					}
					return fmt.Errorf("upload failed after %s: %s", format.Elapsed(sess.EndedAt.Sub(sess.StartedAt)), api.Detail(err))
				}
				if sess.Result.ConversationID != "" {
					fmt.Fprintf(out, "Conversation %s is ready.\n", sess.Result.ConversationID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&displayName, "name", "n", "", "Display name for the new conversation")
	cmd.Flags().Float64Var(&match, "match-threshold", 0, "Similarity needed to match a known speaker")
	cmd.Flags().Float64Var(&autoUpdate, "auto-update-threshold", 0, "Similarity needed to enrol the match as a new embedding")
	return cmd
}
