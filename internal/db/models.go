// Package db is the SQLite store behind the reference backend: conversations,
// speakers, utterances and voice embeddings.
package db

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSpeakerInUse is returned when deleting a speaker that utterances
	// still reference.
	ErrSpeakerInUse = errors.New("speaker still has utterances")
)

// Conversation is one processed recording.
type Conversation struct {
	ID              int64
	ConversationID  string
	DisplayName     *string
	ProcessedAt     *time.Time
	DurationSeconds float64
	SpeakerCount    int
	AudioType       string
}

// Speaker is a named voice with utterance statistics.
type Speaker struct {
	ID              int64
	Name            string
	UtteranceCount  int
	TotalDurationMs float64
	CreatedAt       time.Time
}

// Utterance is one attributed speech segment.
type Utterance struct {
	ID             int64
	ConversationID int64
	SpeakerID      *int64
	SpeakerName    *string
	StartTime      *string
	EndTime        *string
	StartMs        float64
	EndMs          float64
	Text           *string
}

// DurationMs is the segment length in milliseconds.
func (u Utterance) DurationMs() float64 {
	if u.EndMs < u.StartMs {
		return 0
	}
	return u.EndMs - u.StartMs
}

// NewUtterance describes an utterance to insert. An empty SpeakerName leaves
// the utterance unassigned; an unknown name creates the speaker.
type NewUtterance struct {
	SpeakerName string
	StartMs     float64
	EndMs       float64
	Text        string
}

// NewConversation describes a conversation to insert.
type NewConversation struct {
	ConversationID  string
	DisplayName     string
	ProcessedAt     time.Time
	DurationSeconds float64
	Audio           []byte
	AudioType       string
	Utterances      []NewUtterance
}

// Embedding is one stored voice print.
type Embedding struct {
	ID          string
	SpeakerName string
	SourceFile  string
	CreatedAt   time.Time
}
