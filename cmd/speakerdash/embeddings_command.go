package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/view"
)

func newEmbeddingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embeddings",
		Short: "Manage enrolled voice embeddings",
	}
	cmd.AddCommand(newEmbeddingsListCommand(ctx))
	cmd.AddCommand(newEmbeddingsAddCommand(ctx))
	cmd.AddCommand(newEmbeddingsDeleteCommand(ctx))
	return cmd
}

func newEmbeddingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled voices by speaker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				groups, err := client.ListEmbeddingSpeakers(cmd.Context())
				if err != nil {
					return describeAPIError("list embeddings", err)
				}
				rows := view.EmbeddingRows(groups)
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No enrolled voices.")
					return nil
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{r.Speaker, strconv.Itoa(r.Count), strings.Join(r.Embeddings, ", ")})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Speaker", "Count", "Embeddings"},
					table,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newEmbeddingsAddCommand(ctx *commandContext) *cobra.Command {
	var newSpeaker bool
	cmd := &cobra.Command{
		Use:   "add <speaker> <file>",
		Short: "Enrol a voice sample for a speaker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open sample: %w", err)
			}
			defer f.Close()
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				add := client.AddEmbedding
				if newSpeaker {
					add = client.AddEmbeddingSpeaker
				}
				res, err := add(cmd.Context(), args[0], filepath.Base(args[1]), f)
				if err != nil {
					return describeAPIError("add embedding", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added embedding %s for %s.\n", res.EmbeddingID, res.SpeakerName)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&newSpeaker, "new", false, "Enrol a speaker that has no embeddings yet")
	return cmd
}

func newEmbeddingsDeleteCommand(ctx *commandContext) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete [speaker]",
		Short: "Delete every embedding of a speaker, or one by --id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (id == "") == (len(args) == 0) {
				return fmt.Errorf("give either a speaker name or --id")
			}
			return ctx.withClient(cmd, func(client *api.Client, logger zerolog.Logger) error {
				out := cmd.OutOrStdout()
				if id != "" {
					res, err := client.DeleteEmbedding(cmd.Context(), id)
					if err != nil {
						return describeAPIError("delete embedding", err)
					}
					fmt.Fprintf(out, "Deleted embedding %s of %s.\n", id, res.SpeakerName)
					return nil
				}
				res, err := client.DeleteEmbeddingSpeaker(cmd.Context(), args[0])
				if err != nil {
					return describeAPIError("delete embeddings", err)
				}
				fmt.Fprintf(out, "Deleted %d embeddings of %s.\n", res.Deleted, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Delete a single embedding by id")
	return cmd
}
