package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID is an opaque server-assigned identifier. The backend emits some ids as
// JSON numbers and others as strings; both decode to the same ID.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "None" {
			s = ""
		}
		*id = ID(s)
		return nil
	}
	v, err := numericID(string(data))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// numericID canonicalizes a JSON number so that 1000, 1e3 and 1000.0 name
// the same id.
func numericID(raw string) (ID, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10)), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("id: unsupported value %s", raw)
	}
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return ID(strconv.FormatInt(int64(f), 10)), nil
	}
	return ID(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (id ID) String() string { return string(id) }

// UnknownSpeakerName is the backend's catch-all speaker that utterances are
// moved to before their speaker is deleted.
const UnknownSpeakerName = "unknown_speaker"

// Conversation is one processed recording. Utterances is nil unless the
// conversation was fetched by id.
type Conversation struct {
	ID              ID
	ConversationID  string
	DisplayName     string
	CreatedAt       string
	DurationSeconds float64
	SpeakerCount    int
	Utterances      []Utterance
}

// Speaker is a named identity utterances are attributed to.
type Speaker struct {
	ID                   ID
	Name                 string
	UtteranceCount       int
	TotalDurationSeconds float64
}

// Utterance is one attributed speech segment. SpeakerName is a display cache
// of the referenced speaker's name at last sync.
type Utterance struct {
	ID             ID
	ConversationID ID
	SpeakerID      ID
	SpeakerName    string
	Text           string
	StartTime      string
	EndTime        string
	StartMs        float64
	EndMs          float64
	AudioURL       string
}

// DurationSeconds is the utterance length, never negative.
func (u Utterance) DurationSeconds() float64 {
	d := (u.EndMs - u.StartMs) / 1000
	if d < 0 {
		return 0
	}
	return d
}

// EmbeddingSpeaker groups the voice embeddings stored for one speaker name.
type EmbeddingSpeaker struct {
	Name       string
	Embeddings []Embedding
}

// Embedding is one stored voice print.
type Embedding struct {
	ID          string
	SpeakerName string
}

// UtterancePatch carries the fields of an utterance edit; nil fields are left
// untouched by the server.
type UtterancePatch struct {
	SpeakerID *ID
	Text      *string
}

// ReassignResult reports a bulk speaker reassignment.
type ReassignResult struct {
	FromSpeakerID ID
	ToSpeakerID   ID
	Count         int
}

// DeleteSpeakerResult reports a speaker deletion.
type DeleteSpeakerResult struct {
	ID                   ID
	Name                 string
	UtterancesReassigned int
}

// UploadResult is the reply to a successful conversation upload.
type UploadResult struct {
	ConversationID string
	Message        string
	Logs           []string
}

// EmbeddingResult is the reply to adding or deleting embeddings.
type EmbeddingResult struct {
	SpeakerName string
	EmbeddingID string
	Deleted     int
}
