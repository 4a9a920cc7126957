package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
)

func newAudioCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "audio <conversation> <utterance>",
		Short: "Download an utterance's audio clip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				convID, err := loadConversation(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				uttID := api.ID(strings.TrimSpace(args[1]))
				target := client.AudioURL(convID, uttID)
				if utt, ok := store.Utterance(uttID); ok && utt.AudioURL != "" {
					target = utt.AudioURL
				}
				clip, err := client.Audio(cmd.Context(), target)
				if err != nil {
					return describeAPIError("fetch audio", err)
				}

				path := output
				if path == "" {
					path = fmt.Sprintf("utterance-%s.wav", uttID)
				}
				if path == "-" {
					_, err := cmd.OutOrStdout().Write(clip.Data)
					return err
				}
				if err := os.WriteFile(path, clip.Data, 0o644); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s via %s)\n",
					path, format.Bytes(int64(len(clip.Data))), clip.ContentType, clip.Source)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file, or - for stdout")
	return cmd
}
