package api

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ListEmbeddingSpeakers returns stored voice embeddings grouped by speaker.
func (c *Client) ListEmbeddingSpeakers(ctx context.Context) ([]EmbeddingSpeaker, error) {
	const op = "list embeddings"
	var wire embeddingSpeakersWire
	if err := c.send(ctx, request{op: op, method: http.MethodGet, url: c.endpoint("pinecone", "speakers")}, &wire); err != nil {
		return nil, err
	}
	out := make([]EmbeddingSpeaker, 0, len(wire.Speakers))
	for _, s := range wire.Speakers {
		es := EmbeddingSpeaker{Name: s.Name, Embeddings: make([]Embedding, 0, len(s.Embeddings))}
		for _, e := range s.Embeddings {
			es.Embeddings = append(es.Embeddings, Embedding{ID: e.ID, SpeakerName: s.Name})
		}
		out = append(out, es)
	}
	return out, nil
}

// AddEmbeddingSpeaker enrolls a new speaker from a voice sample. The backend
// rejects names that already have embeddings.
func (c *Client) AddEmbeddingSpeaker(ctx context.Context, speakerName, fileName string, audio io.Reader) (EmbeddingResult, error) {
	return c.postEmbedding(ctx, "add embedding speaker", c.endpoint("pinecone", "speakers"), speakerName, fileName, audio)
}

// AddEmbedding adds another voice sample to an enrolled speaker.
func (c *Client) AddEmbedding(ctx context.Context, speakerName, fileName string, audio io.Reader) (EmbeddingResult, error) {
	return c.postEmbedding(ctx, "add embedding", c.endpoint("pinecone", "embeddings"), speakerName, fileName, audio)
}

func (c *Client) postEmbedding(ctx context.Context, op, target, speakerName, fileName string, audio io.Reader) (EmbeddingResult, error) {
	speakerName = strings.TrimSpace(speakerName)
	if speakerName == "" {
		return EmbeddingResult{}, validation(op, "speaker name is required")
	}
	if audio == nil {
		return EmbeddingResult{}, validation(op, "audio sample is required")
	}
	body, contentType := multipartBody([]formField{{"speaker_name", speakerName}}, "audio_file", filepath.Base(fileName), audio, nil)
	defer body.Close()
	var reply embeddingReplyWire
	if err := c.send(ctx, request{op: op, method: http.MethodPost, url: target, body: body, contentType: contentType, timeout: c.uploadTimeout}, &reply); err != nil {
		return EmbeddingResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult{SpeakerName: reply.SpeakerName, EmbeddingID: reply.EmbeddingID}, nil
}

// DeleteEmbeddingSpeaker removes every embedding stored for speakerName.
func (c *Client) DeleteEmbeddingSpeaker(ctx context.Context, speakerName string) (EmbeddingResult, error) {
	const op = "delete embedding speaker"
	var reply embeddingReplyWire
	if err := c.send(ctx, request{op: op, method: http.MethodDelete, url: c.endpoint("pinecone", "speakers", speakerName)}, &reply); err != nil {
		return EmbeddingResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult{SpeakerName: reply.SpeakerName, Deleted: reply.EmbeddingsDeleted}, nil
}

// DeleteEmbedding removes one embedding by id.
func (c *Client) DeleteEmbedding(ctx context.Context, embeddingID string) (EmbeddingResult, error) {
	const op = "delete embedding"
	var reply embeddingReplyWire
	if err := c.send(ctx, request{op: op, method: http.MethodDelete, url: c.endpoint("pinecone", "embeddings", embeddingID)}, &reply); err != nil {
		return EmbeddingResult{}, err
	}
	if err := checkStatus(op, reply.statusWire); err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult{SpeakerName: reply.SpeakerName, EmbeddingID: reply.EmbeddingID, Deleted: 1}, nil
}
