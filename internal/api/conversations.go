package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListConversations returns every conversation, newest first as ordered by
// the server.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	const op = "list conversations"
	var wire []conversationWire
	if err := c.send(ctx, request{op: op, method: http.MethodGet, url: c.endpoint("conversations")}, &wire); err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(wire))
	for _, w := range wire {
		conv := w.model()
		conv.Utterances = nil
		out = append(out, conv)
	}
	return out, nil
}

// GetConversation returns one conversation including its utterances.
func (c *Client) GetConversation(ctx context.Context, id ID) (Conversation, error) {
	const op = "get conversation"
	if strings.TrimSpace(string(id)) == "" {
		return Conversation{}, validation(op, "conversation id is required")
	}
	var wire conversationWire
	if err := c.send(ctx, request{op: op, method: http.MethodGet, url: c.endpoint("conversations", string(id))}, &wire); err != nil {
		return Conversation{}, err
	}
	conv := wire.model()
	if conv.Utterances == nil {
		conv.Utterances = []Utterance{}
	}
	if conv.SpeakerCount == 0 {
		conv.SpeakerCount = distinctSpeakers(conv.Utterances)
	}
	return conv, nil
}

// UpdateConversation sets a conversation's display name.
func (c *Client) UpdateConversation(ctx context.Context, id ID, displayName string) error {
	const op = "update conversation"
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return validation(op, "display name is required")
	}
	var reply statusWire
	req := formRequest(op, http.MethodPut, c.endpoint("conversations", string(id)), url.Values{"display_name": {displayName}})
	if err := c.send(ctx, req, &reply); err != nil {
		return err
	}
	return checkStatus(op, reply)
}

// DeleteConversation removes a conversation and its utterances.
func (c *Client) DeleteConversation(ctx context.Context, id ID) error {
	const op = "delete conversation"
	var reply statusWire
	if err := c.send(ctx, request{op: op, method: http.MethodDelete, url: c.endpoint("conversations", string(id))}, &reply); err != nil {
		return err
	}
	return checkStatus(op, reply)
}

func distinctSpeakers(utterances []Utterance) int {
	seen := make(map[ID]struct{}, len(utterances))
	for _, u := range utterances {
		if u.SpeakerID == "" {
			continue
		}
		seen[u.SpeakerID] = struct{}{}
	}
	return len(seen)
}
