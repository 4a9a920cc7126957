package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListSpeakers returns every speaker with utterance statistics.
func (c *Client) ListSpeakers(ctx context.Context) ([]Speaker, error) {
	const op = "list speakers"
	var wire []speakerWire
	if err := c.send(ctx, request{op: op, method: http.MethodGet, url: c.endpoint("speakers")}, &wire); err != nil {
		return nil, err
	}
	out := make([]Speaker, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.model())
	}
	return out, nil
}

// CreateSpeaker adds a speaker. The backend returns the existing speaker when
// the name is already taken.
func (c *Client) CreateSpeaker(ctx context.Context, name string) (Speaker, error) {
	const op = "create speaker"
	name = strings.TrimSpace(name)
	if name == "" {
		return Speaker{}, validation(op, "speaker name is required")
	}
	var reply speakerReplyWire
	if err := c.send(ctx, formRequest(op, http.MethodPost, c.endpoint("speakers"), url.Values{"name": {name}}), &reply); err != nil {
		return Speaker{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return Speaker{}, err
	}
	if reply.ID == "" {
		return Speaker{}, &Error{Kind: KindServerError, Op: op, Message: "reply carried no speaker id"}
	}
	if reply.Name == "" {
		reply.Name = name
	}
	return Speaker{ID: reply.ID, Name: reply.Name}, nil
}

// UpdateSpeaker renames a speaker and returns the name the server stored.
func (c *Client) UpdateSpeaker(ctx context.Context, id ID, name string) (string, error) {
	const op = "update speaker"
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validation(op, "speaker name is required")
	}
	var reply speakerReplyWire
	if err := c.send(ctx, formRequest(op, http.MethodPut, c.endpoint("speakers", string(id)), url.Values{"name": {name}}), &reply); err != nil {
		return "", err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return "", err
	}
	if reply.Name == "" {
		return name, nil
	}
	return reply.Name, nil
}

// DeleteSpeaker removes a speaker. The backend refuses (Validation) while
// utterances still reference it.
func (c *Client) DeleteSpeaker(ctx context.Context, id ID) (DeleteSpeakerResult, error) {
	const op = "delete speaker"
	var reply speakerReplyWire
	if err := c.send(ctx, request{op: op, method: http.MethodDelete, url: c.endpoint("speakers", string(id))}, &reply); err != nil {
		return DeleteSpeakerResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return DeleteSpeakerResult{}, err
	}
	out := DeleteSpeakerResult{ID: reply.ID, Name: reply.Name, UtterancesReassigned: reply.UtterancesReassigned}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// ReassignAllUtterances moves utterances from one speaker to another. A
// non-empty conversationID limits the move to that conversation.
func (c *Client) ReassignAllUtterances(ctx context.Context, fromID, toID, conversationID ID) (ReassignResult, error) {
	const op = "reassign utterances"
	if fromID == "" || toID == "" {
		return ReassignResult{}, validation(op, "source and target speaker are required")
	}
	if fromID == toID {
		return ReassignResult{}, validation(op, "source and target speaker are the same")
	}
	values := url.Values{"to_speaker_id": {string(toID)}}
	if conversationID != "" {
		values.Set("conversation_id", string(conversationID))
	}
	var reply reassignReplyWire
	if err := c.send(ctx, formRequest(op, http.MethodPut, c.endpoint("speakers", string(fromID), "update-all-utterances"), values), &reply); err != nil {
		return ReassignResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return ReassignResult{}, err
	}
	out := ReassignResult{FromSpeakerID: fromID, ToSpeakerID: toID}
	switch {
	case reply.Count != nil:
		out.Count = *reply.Count
	case reply.UpdatedCount != nil:
		out.Count = *reply.UpdatedCount
	}
	return out, nil
}
