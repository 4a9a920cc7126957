package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
)

func newUtterancesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "utterances",
		Aliases: []string{"utt"},
		Short:   "Correct individual utterances",
	}
	cmd.AddCommand(newUtterancesAssignCommand(ctx))
	cmd.AddCommand(newUtterancesEditCommand(ctx))
	return cmd
}

func newUtterancesAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <conversation> <utterance> <speaker>",
		Short: "Attribute an utterance to a speaker, creating it when new",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				if _, err := loadConversation(cmd.Context(), store, args[0]); err != nil {
					return err
				}
				utt, ok := store.Utterance(api.ID(strings.TrimSpace(args[1])))
				if !ok {
					return fmt.Errorf("utterance %q not found in conversation %q", args[1], args[0])
				}
				target, err := speakerTarget(store, args[2])
				if err != nil {
					return err
				}
				res, err := actions.AssignUtteranceSpeaker(cmd.Context(), client, utt.ID, target)
				return finish(cmd, store, "assign speaker", res, err)
			})
		},
	}
}

func newUtterancesEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <conversation> <utterance> <text>",
		Short: "Replace an utterance's transcription",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				if _, err := loadConversation(cmd.Context(), store, args[0]); err != nil {
					return err
				}
				utt, ok := store.Utterance(api.ID(strings.TrimSpace(args[1])))
				if !ok {
					return fmt.Errorf("utterance %q not found in conversation %q", args[1], args[0])
				}
				res, err := actions.EditUtteranceText(cmd.Context(), client, utt.ID, args[2])
				return finish(cmd, store, "edit text", res, err)
			})
		},
	}
}
