package state

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jwulff/speakerdash/internal/api"
)

// DefaultDetailConcurrency bounds concurrent conversation fetches.
const DefaultDetailConcurrency = 4

// FetchConversationDetails fetches every conversation in ids with at most
// limit requests in flight. Results keep the order of ids. The first error
// cancels the remaining fetches.
func FetchConversationDetails(ctx context.Context, f Fetcher, ids []api.ID, limit int) ([]api.Conversation, error) {
	if limit <= 0 {
		limit = DefaultDetailConcurrency
	}
	out := make([]api.Conversation, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			conv, err := f.GetConversation(gctx, id)
			if err != nil {
				return err
			}
			out[i] = conv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
