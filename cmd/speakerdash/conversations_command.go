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

func newConversationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List and edit conversations",
	}
	cmd.AddCommand(newConversationsListCommand(ctx))
	cmd.AddCommand(newConversationsShowCommand(ctx))
	cmd.AddCommand(newConversationsRenameCommand(ctx))
	cmd.AddCommand(newConversationsDeleteCommand(ctx))
	return cmd
}

func newConversationsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List processed conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store := state.NewStore(client, logger)
				if err := store.LoadConversations(cmd.Context()); err != nil {
					return describeAPIError("list conversations", err)
				}
				rows := view.ConversationRows(store.Snapshot())
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No conversations yet.")
					return nil
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{
						r.ID.String(), r.Title, r.Date, r.Duration, strconv.Itoa(r.Speakers),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Date", "Duration", "Speakers"},
					table,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newConversationsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conversation>",
		Short: "Show a conversation's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store := state.NewStore(client, logger)
				if _, err := loadConversation(cmd.Context(), store, args[0]); err != nil {
					return err
				}
				snap := store.Snapshot()
				header, _ := view.ConversationHeader(snap)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  (id %s, %s)\n", header.Title, header.ID, header.ShortID)
				fmt.Fprintf(out, "%s · %s · %d speakers · %d utterances\n\n",
					header.Date, header.Duration, header.Speakers, header.Utterances)

				speakers := view.ConversationSpeakers(snap)
				if len(speakers) > 0 {
					rows := make([][]string, 0, len(speakers))
					for _, s := range speakers {
						rows = append(rows, []string{s.Name, strconv.Itoa(s.Utterances), s.Duration})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Speaker", "Utterances", "Duration"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignRight},
					))
				}

				utts := view.UtteranceRows(snap)
				if len(utts) == 0 {
					fmt.Fprintln(out, "No utterances.")
					return nil
				}
				rows := make([][]string, 0, len(utts))
				for _, u := range utts {
					rows = append(rows, []string{u.ID.String(), u.Start, u.Speaker, u.Text})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Start", "Speaker", "Text"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newConversationsRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation> <name>",
		Short: "Set a conversation's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store := state.NewStore(client, logger)
				id, err := loadConversation(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				res, err := actions.RenameConversation(cmd.Context(), client, id, args[1])
				return finish(cmd, store, "rename conversation", res, err)
			})
		},
	}
}

func newConversationsDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <conversation>",
		Short: "Delete a conversation and its utterances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				store := state.NewStore(client, logger)
				id, err := loadConversation(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if !yes {
					header, _ := view.ConversationHeader(store.Snapshot())
					return fmt.Errorf("refusing to delete %q without --yes", header.Title)
				}
				res, err := actions.DeleteConversation(cmd.Context(), client, id)
				return finish(cmd, store, "delete conversation", res, err)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

// finish applies a settled action to store and reports its notice.
func finish(cmd *cobra.Command, store *state.Store, action string, res actions.Result, err error) error {
	if applyErr := res.Apply(store); applyErr != nil && err == nil {
		err = applyErr
	}
	if err != nil {
		return errors.New(actions.FailureNotice(action, err).Text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Notice.Text)
	return nil
}
