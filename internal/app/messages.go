package app

import (
	"io"
	"time"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/upload"
)

// ConversationsLoadedMsg carries the conversation list.
type ConversationsLoadedMsg struct {
	Conversations []api.Conversation
	Err           error
}

// SpeakersLoadedMsg carries the speaker list.
type SpeakersLoadedMsg struct {
	Speakers []api.Speaker
	Err      error
}

// ConversationLoadedMsg carries one conversation with its utterances.
type ConversationLoadedMsg struct {
	ID           api.ID
	Conversation api.Conversation
	Err          error
}

// SpeakerCountsMsg carries how many conversations each speaker appears in.
type SpeakerCountsMsg struct {
	Counts map[api.ID]int
	Err    error
}

// EmbeddingsLoadedMsg carries the enrolled voice embeddings.
type EmbeddingsLoadedMsg struct {
	Speakers []api.EmbeddingSpeaker
	Err      error
}

// ActionDoneMsg reports a settled user edit.
type ActionDoneMsg struct {
	Label  string
	Result actions.Result
	Err    error
	// ReloadEmbeddings asks for the embedding list to be fetched again.
	ReloadEmbeddings bool
}

// UploadStartedMsg reports that an upload request was issued.
type UploadStartedMsg struct {
	Session *upload.Session
	Events  <-chan upload.Event
	File    io.Closer
	Err     error
}

// UploadEventMsg wraps one report from the upload goroutine. Closed is set
// once the event channel is drained.
type UploadEventMsg struct {
	SessionID string
	Event     upload.Event
	Closed    bool
}

// UploadTickMsg drives the cosmetic upload progress.
type UploadTickMsg struct {
	SessionID string
	At        time.Time
}

// ClearNoticeMsg clears the notice with the given sequence number.
type ClearNoticeMsg struct {
	Seq int
}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
