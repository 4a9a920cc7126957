package fixture

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jwulff/speakerdash/internal/db"
)

// JSON shapes of the backend replies. Conversation and utterance ids are
// strings; speaker ids are numbers except where an utterance references one.

type conversationJSON struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	CreatedAt      *string         `json:"created_at"`
	Duration       float64         `json:"duration"`
	DisplayName    *string         `json:"display_name"`
	SpeakerCount   int             `json:"speaker_count"`
	Utterances     []utteranceJSON `json:"utterances,omitempty"`
}

type utteranceJSON struct {
	ID          string  `json:"id"`
	SpeakerID   string  `json:"speaker_id"`
	SpeakerName *string `json:"speaker_name"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	StartMs     float64 `json:"start_ms"`
	EndMs       float64 `json:"end_ms"`
	Text        *string `json:"text"`
	AudioURL    string  `json:"audio_url"`
}

type speakerJSON struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	UtteranceCount int     `json:"utterance_count"`
	TotalDuration  float64 `json:"total_duration"`
}

type embeddingSpeakerJSON struct {
	Name       string          `json:"name"`
	Embeddings []embeddingJSON `json:"embeddings"`
}

type embeddingJSON struct {
	ID string `json:"id"`
}

func conversationOut(c db.Conversation) conversationJSON {
	out := conversationJSON{
		ID:             strconv.FormatInt(c.ID, 10),
		ConversationID: c.ConversationID,
		Duration:       c.DurationSeconds,
		DisplayName:    c.DisplayName,
		SpeakerCount:   c.SpeakerCount,
	}
	if c.ProcessedAt != nil {
		ts := c.ProcessedAt.UTC().Format("2006-01-02T15:04:05.000000")
		out.CreatedAt = &ts
	}
	return out
}

func utteranceOut(u db.Utterance) utteranceJSON {
	id := strconv.FormatInt(u.ID, 10)
	out := utteranceJSON{
		ID:          id,
		SpeakerID:   "None",
		SpeakerName: u.SpeakerName,
		StartTime:   u.StartTime,
		EndTime:     u.EndTime,
		StartMs:     u.StartMs,
		EndMs:       u.EndMs,
		Text:        u.Text,
		AudioURL:    fmt.Sprintf("/api/audio/%d/%s", u.ConversationID, id),
	}
	if u.SpeakerID != nil {
		out.SpeakerID = strconv.FormatInt(*u.SpeakerID, 10)
	}
	return out
}

func speakerOut(sp db.Speaker) speakerJSON {
	return speakerJSON{
		ID:             sp.ID,
		Name:           sp.Name,
		UtteranceCount: sp.UtteranceCount,
		TotalDuration:  sp.TotalDurationMs,
	}
}

func groupEmbeddings(all []db.Embedding) []embeddingSpeakerJSON {
	out := []embeddingSpeakerJSON{}
	index := map[string]int{}
	for _, e := range all {
		i, ok := index[e.SpeakerName]
		if !ok {
			i = len(out)
			index[e.SpeakerName] = i
			out = append(out, embeddingSpeakerJSON{Name: e.SpeakerName, Embeddings: []embeddingJSON{}})
		}
		out[i].Embeddings = append(out[i].Embeddings, embeddingJSON{ID: e.ID})
	}
	return out
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

func embeddingID(speakerName string, now time.Time) string {
	return fmt.Sprintf("%s_%d", speakerName, now.UnixNano())
}
