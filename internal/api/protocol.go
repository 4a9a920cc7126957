package api

import "encoding/json"

// Wire shapes of the backend's JSON replies. They stay private so callers
// only ever see the normalized models.

type conversationWire struct {
	ID             ID              `json:"id"`
	ConversationID string          `json:"conversation_id"`
	CreatedAt      *string         `json:"created_at"`
	Duration       *float64        `json:"duration"`
	DisplayName    *string         `json:"display_name"`
	SpeakerCount   *int            `json:"speaker_count"`
	Utterances     []utteranceWire `json:"utterances"`
}

type utteranceWire struct {
	ID          ID       `json:"id"`
	SpeakerID   ID       `json:"speaker_id"`
	SpeakerName *string  `json:"speaker_name"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	StartMs     *float64 `json:"start_ms"`
	EndMs       *float64 `json:"end_ms"`
	Text        *string  `json:"text"`
	AudioURL    string   `json:"audio_url"`
}

type speakerWire struct {
	ID             ID      `json:"id"`
	Name           string  `json:"name"`
	UtteranceCount int     `json:"utterance_count"`
	TotalDuration  float64 `json:"total_duration"`
}

// statusWire covers the {success, detail} envelope shared by mutating calls.
type statusWire struct {
	Success *bool           `json:"success"`
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type speakerReplyWire struct {
	statusWire
	ID                   ID     `json:"id"`
	Name                 string `json:"name"`
	UtterancesReassigned int    `json:"utterances_reassigned"`
}

type reassignReplyWire struct {
	statusWire
	FromSpeakerID ID   `json:"from_speaker_id"`
	ToSpeakerID   ID   `json:"to_speaker_id"`
	Count         *int `json:"count"`
	UpdatedCount  *int `json:"updated_count"`
}

type uploadReplyWire struct {
	statusWire
	ConversationID string   `json:"conversation_id"`
	Logs           []string `json:"logs"`
}

type utteranceBody struct {
	SpeakerID *ID     `json:"speaker_id,omitempty"`
	Text      *string `json:"text,omitempty"`
}

type embeddingSpeakersWire struct {
	Speakers []struct {
		Name       string `json:"name"`
		Embeddings []struct {
			ID string `json:"id"`
		} `json:"embeddings"`
	} `json:"speakers"`
}

type embeddingReplyWire struct {
	statusWire
	SpeakerName       string `json:"speaker_name"`
	EmbeddingID       string `json:"embedding_id"`
	EmbeddingsDeleted int    `json:"embeddings_deleted"`
}

func (w statusWire) failed() bool { return w.Success != nil && !*w.Success }

func (w statusWire) detail() string {
	if d := parseDetail(w.Detail); d != "" {
		return d
	}
	return w.Message
}

func (w conversationWire) model() Conversation {
	c := Conversation{
		ID:             w.ID,
		ConversationID: w.ConversationID,
	}
	if w.CreatedAt != nil {
		c.CreatedAt = *w.CreatedAt
	}
	if w.Duration != nil && *w.Duration > 0 {
		c.DurationSeconds = *w.Duration
	}
	if w.DisplayName != nil {
		c.DisplayName = *w.DisplayName
	}
	if w.SpeakerCount != nil && *w.SpeakerCount > 0 {
		c.SpeakerCount = *w.SpeakerCount
	}
	if w.Utterances != nil {
		c.Utterances = make([]Utterance, 0, len(w.Utterances))
		for _, u := range w.Utterances {
			c.Utterances = append(c.Utterances, u.model(w.ID))
		}
	}
	return c
}

func (w utteranceWire) model(conversationID ID) Utterance {
	u := Utterance{
		ID:             w.ID,
		ConversationID: conversationID,
		SpeakerID:      w.SpeakerID,
		AudioURL:       w.AudioURL,
	}
	if w.SpeakerName != nil {
		u.SpeakerName = *w.SpeakerName
	}
	if w.Text != nil {
		u.Text = *w.Text
	}
	if w.StartTime != nil {
		u.StartTime = *w.StartTime
	}
	if w.EndTime != nil {
		u.EndTime = *w.EndTime
	}
	if w.StartMs != nil {
		u.StartMs = *w.StartMs
	}
	if w.EndMs != nil {
		u.EndMs = *w.EndMs
	}
	return u
}

func (w speakerWire) model() Speaker {
	s := Speaker{
		ID:             w.ID,
		Name:           w.Name,
		UtteranceCount: w.UtteranceCount,
	}
	if s.UtteranceCount < 0 {
		s.UtteranceCount = 0
	}
	if w.TotalDuration > 0 {
		s.TotalDurationSeconds = w.TotalDuration / 1000
	}
	return s
}
