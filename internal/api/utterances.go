package api

import (
	"context"
	"net/http"
)

// UpdateUtterance changes an utterance's speaker, text, or both.
func (c *Client) UpdateUtterance(ctx context.Context, id ID, patch UtterancePatch) error {
	const op = "update utterance"
	if patch.SpeakerID == nil && patch.Text == nil {
		return validation(op, "either speaker or text must be provided")
	}
	if patch.SpeakerID != nil && *patch.SpeakerID == "" {
		return validation(op, "speaker id is empty")
	}
	req, err := jsonRequest(op, http.MethodPut, c.endpoint("utterances", string(id)), utteranceBody{SpeakerID: patch.SpeakerID, Text: patch.Text})
	if err != nil {
		return err
	}
	var reply statusWire
	if err := c.send(ctx, req, &reply); err != nil {
		return err
	}
	return checkStatus(op, reply)
}
