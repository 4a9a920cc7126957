package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/view"
)

func newSpeakersCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speakers",
		Short: "List and edit speakers",
	}
	cmd.AddCommand(newSpeakersListCommand(ctx))
	cmd.AddCommand(newSpeakersCreateCommand(ctx))
	cmd.AddCommand(newSpeakersRenameCommand(ctx))
	cmd.AddCommand(newSpeakersDeleteCommand(ctx))
	cmd.AddCommand(newSpeakersReassignCommand(ctx))
	return cmd
}

// loadSpeakers returns a store with the speaker list loaded.
func loadSpeakers(cmd *cobra.Command, client *api.Client, logger zerolog.Logger) (*state.Store, error) {
	store := state.NewStore(client, logger)
	if err := store.LoadSpeakers(cmd.Context()); err != nil {
		return nil, describeAPIError("list speakers", err)
	}
	return store, nil
}

func newSpeakersListCommand(ctx *commandContext) *cobra.Command {
	var withConversations bool
	var concurrency int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List speakers with their utterance totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				var counts map[api.ID]int
				if withConversations {
					if err := store.LoadConversations(cmd.Context()); err != nil {
						return describeAPIError("list conversations", err)
					}
					convs := store.Snapshot().Conversations
					ids := make([]api.ID, 0, len(convs))
					for _, c := range convs {
						ids = append(ids, c.ID)
					}
					details, err := state.FetchConversationDetails(cmd.Context(), client, ids, concurrency)
					if err != nil {
						return describeAPIError("load conversations", err)
					}
					counts = view.SpeakerConversationCounts(details)
				}

				rows := view.SpeakerRows(store.Snapshot(), counts)
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No speakers yet.")
					return nil
				}
				headers := []string{"ID", "Name", "Utterances", "Duration"}
				aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight}
				if withConversations {
					headers = append(headers, "Conversations")
					aligns = append(aligns, alignRight)
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					row := []string{r.ID.String(), r.Name, strconv.Itoa(r.Utterances), r.Duration}
					if withConversations {
						row = append(row, strconv.Itoa(r.Conversations))
					}
					table = append(table, row)
				}
				fmt.Fprintln(out, renderTable(headers, table, aligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withConversations, "conversations", false, "Count the conversations each speaker appears in")
	cmd.Flags().IntVar(&concurrency, "concurrency", state.DefaultDetailConcurrency, "Concurrent conversation fetches for --conversations")
	return cmd
}

func newSpeakersCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a speaker, or report the existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store := state.NewStore(client, logger)
				res, err := actions.CreateSpeaker(cmd.Context(), client, args[0])
				return finish(cmd, store, "create speaker", res, err)
			})
		},
	}
}

func newSpeakersRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <speaker> <name>",
		Short: "Rename a speaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				sp, err := findSpeaker(store, args[0])
				if err != nil {
					return err
				}
				res, err := actions.RenameSpeaker(cmd.Context(), client, sp.ID, args[1])
				return finish(cmd, store, "rename speaker", res, err)
			})
		},
	}
}

func newSpeakersDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <speaker>",
		Short: "Delete a speaker, moving its utterances to the unknown speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				sp, err := findSpeaker(store, args[0])
				if err != nil {
					return err
				}
				prompt, _ := view.DeleteSpeakerPrompt(store.Snapshot(), sp.ID)
				if prompt.Blocked {
					return errors.New(prompt.Message)
				}
				if !yes {
					return fmt.Errorf("%s Re-run with --yes to confirm.", prompt.Message)
				}
				res, err := actions.DeleteSpeaker(cmd.Context(), client, sp)
				return finish(cmd, store, "delete speaker", res, err)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newSpeakersReassignCommand(ctx *commandContext) *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "reassign <from> <to>",
		Short: "Move every utterance of one speaker in a conversation to another",
		Long: "Move every utterance attributed to <from> in the given conversation to <to>.\n" +
			"<to> is created when no speaker has that name.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if conversation == "" {
				return fmt.Errorf("--conversation is required")
			}
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store, err := loadSpeakers(cmd, client, logger)
				if err != nil {
					return err
				}
				convID, err := loadConversation(cmd.Context(), store, conversation)
				if err != nil {
					return err
				}
				from, err := findSpeaker(store, args[0])
				if err != nil {
					return err
				}
				target, err := speakerTarget(store, args[1])
				if err != nil {
					return err
				}
				res, err := actions.ReassignAllInConversation(cmd.Context(), client, actions.Bulk{
					ConversationID: convID,
					FromID:         from.ID,
					FromName:       from.Name,
					Target:         target,
				})
				return finish(cmd, store, "reassign utterances", res, err)
			})
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation id or name to reassign within")
	return cmd
}
