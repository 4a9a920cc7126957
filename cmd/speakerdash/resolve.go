package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
)

// loadConversation finds a conversation by id, conversation id or display
// name and opens it in store.
func loadConversation(ctx context.Context, store *state.Store, ref string) (api.ID, error) {
	if err := store.LoadConversations(ctx); err != nil {
		return "", describeAPIError("list conversations", err)
	}
	ref = strings.TrimSpace(ref)
	var match []api.Conversation
	for _, c := range store.Snapshot().Conversations {
		if string(c.ID) == ref || c.ConversationID == ref {
			match = []api.Conversation{c}
			break
		}
		if strings.EqualFold(strings.TrimSpace(c.DisplayName), ref) {
			match = append(match, c)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("conversation %q not found", ref)
	case 1:
	default:
		return "", fmt.Errorf("conversation name %q is ambiguous; use its id", ref)
	}
	if err := store.OpenConversationByID(ctx, match[0].ID); err != nil {
		return "", describeAPIError("open conversation", err)
	}
	return match[0].ID, nil
}

// findSpeaker looks a speaker up by id or exact name in a loaded store.
func findSpeaker(store *state.Store, ref string) (api.Speaker, error) {
	ref = strings.TrimSpace(ref)
	if sp, ok := store.Speaker(api.ID(ref)); ok {
		return sp, nil
	}
	if sp, ok := store.SpeakerByName(ref); ok {
		return sp, nil
	}
	return api.Speaker{}, fmt.Errorf("speaker %q not found", ref)
}

// speakerTarget resolves ref to a known speaker, or names a new one.
func speakerTarget(store *state.Store, ref string) (actions.Target, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return actions.Target{}, fmt.Errorf("speaker name is required")
	}
	if sp, err := findSpeaker(store, ref); err == nil {
		return actions.Target{ID: sp.ID, Name: sp.Name}, nil
	}
	return actions.Target{Name: ref}, nil
}
