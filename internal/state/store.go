// Package state holds the dashboard's in-memory view of the backend: the
// loaded conversations and speakers plus whichever conversation and speaker
// are open. A Store has a single owner; it is mutated only through the load,
// apply and patch entry points and is never shared across goroutines.
package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/api"
)

// Fetcher is the subset of the API client the store refreshes from.
type Fetcher interface {
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	ListSpeakers(ctx context.Context) ([]api.Speaker, error)
	GetConversation(ctx context.Context, id api.ID) (api.Conversation, error)
}

// Store is the view-state of one dashboard session.
type Store struct {
	fetcher Fetcher
	logger  zerolog.Logger

	conversations  []api.Conversation
	speakers       map[api.ID]api.Speaker
	speakerOrder   []api.ID
	speakersLoaded bool

	open          *api.Conversation
	openSpeakerID api.ID

	conversationsStale bool
	speakersStale      bool
}

// NewStore returns an empty store that refreshes through fetcher.
func NewStore(fetcher Fetcher, logger zerolog.Logger) *Store {
	return &Store{
		fetcher:  fetcher,
		logger:   logger,
		speakers: make(map[api.ID]api.Speaker),
	}
}

// LoadConversations fetches the conversation list and replaces the loaded
// one. On failure the store is left as it was.
func (s *Store) LoadConversations(ctx context.Context) error {
	if s.fetcher == nil {
		return fmt.Errorf("load conversations: store has no fetcher")
	}
	convs, err := s.fetcher.ListConversations(ctx)
	if err != nil {
		return err
	}
	s.ReplaceConversations(convs)
	return nil
}

// LoadSpeakers fetches the speaker list and replaces the loaded one. On
// failure the store is left as it was.
func (s *Store) LoadSpeakers(ctx context.Context) error {
	if s.fetcher == nil {
		return fmt.Errorf("load speakers: store has no fetcher")
	}
	speakers, err := s.fetcher.ListSpeakers(ctx)
	if err != nil {
		return err
	}
	s.ReplaceSpeakers(speakers)
	return nil
}

// OpenConversationByID loads speakers when none are loaded yet, then fetches
// the conversation with its utterances and opens it.
func (s *Store) OpenConversationByID(ctx context.Context, id api.ID) error {
	if s.NeedsSpeakers() {
		if err := s.LoadSpeakers(ctx); err != nil {
			return err
		}
	}
	if s.fetcher == nil {
		return fmt.Errorf("open conversation: store has no fetcher")
	}
	conv, err := s.fetcher.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	s.SetOpenConversation(conv)
	return nil
}

// ReplaceConversations swaps in a freshly fetched conversation list.
func (s *Store) ReplaceConversations(convs []api.Conversation) {
	s.conversations = make([]api.Conversation, 0, len(convs))
	for _, c := range convs {
		c.Utterances = nil
		s.conversations = append(s.conversations, c)
	}
	s.conversationsStale = false
}

// ReplaceSpeakers swaps in a freshly fetched speaker list. A duplicate id is a
// data-integrity problem on the server; it is logged and the later entry wins.
func (s *Store) ReplaceSpeakers(speakers []api.Speaker) {
	byID := make(map[api.ID]api.Speaker, len(speakers))
	order := make([]api.ID, 0, len(speakers))
	for _, sp := range speakers {
		if _, dup := byID[sp.ID]; dup {
			s.logger.Warn().Str("speaker_id", sp.ID.String()).Str("name", sp.Name).Msg("duplicate speaker id in list, keeping last")
		} else {
			order = append(order, sp.ID)
		}
		byID[sp.ID] = sp
	}
	s.speakers = byID
	s.speakerOrder = order
	s.speakersLoaded = true
	s.speakersStale = false
}

// SetOpenConversation opens conv. Utterances that claim another conversation
// are adopted into this one. The list entry with the same id is refreshed
// from the detail.
func (s *Store) SetOpenConversation(conv api.Conversation) {
	c := cloneConversation(conv)
	if c.Utterances == nil {
		c.Utterances = []api.Utterance{}
	}
	for i := range c.Utterances {
		c.Utterances[i].ConversationID = c.ID
	}
	s.open = &c
	if i := s.conversationIndex(c.ID); i >= 0 {
		entry := c
		entry.Utterances = nil
		s.conversations[i] = entry
	}
}

// CloseConversation drops the open conversation.
func (s *Store) CloseConversation() { s.open = nil }

// OpenSpeaker marks a loaded speaker as open. It reports false when id is
// not loaded.
func (s *Store) OpenSpeaker(id api.ID) bool {
	if _, ok := s.speakers[id]; !ok {
		return false
	}
	s.openSpeakerID = id
	return true
}

// CloseSpeaker drops the open speaker.
func (s *Store) CloseSpeaker() { s.openSpeakerID = "" }

// NeedsSpeakers reports whether the speaker list has never been loaded.
func (s *Store) NeedsSpeakers() bool { return !s.speakersLoaded }

// MarkStale flags both lists for reloading after a change the patches cannot
// mirror.
func (s *Store) MarkStale() {
	s.conversationsStale = true
	s.speakersStale = true
}

// ConversationsStale reports whether a patch changed server state the store
// cannot mirror exactly in the conversation list.
func (s *Store) ConversationsStale() bool { return s.conversationsStale }

// SpeakersStale is ConversationsStale for the speaker list.
func (s *Store) SpeakersStale() bool { return s.speakersStale }

// OpenConversationID returns the open conversation's id, if any.
func (s *Store) OpenConversationID() (api.ID, bool) {
	if s.open == nil {
		return "", false
	}
	return s.open.ID, true
}

// Speaker returns a loaded speaker by id.
func (s *Store) Speaker(id api.ID) (api.Speaker, bool) {
	sp, ok := s.speakers[id]
	return sp, ok
}

// SpeakerByName returns the first loaded speaker with name.
func (s *Store) SpeakerByName(name string) (api.Speaker, bool) {
	for _, id := range s.speakerOrder {
		if sp := s.speakers[id]; sp.Name == name {
			return sp, true
		}
	}
	return api.Speaker{}, false
}

// Utterance returns a loaded utterance of the open conversation.
func (s *Store) Utterance(id api.ID) (api.Utterance, bool) {
	if i := s.utteranceIndex(id); i >= 0 {
		return s.open.Utterances[i], true
	}
	return api.Utterance{}, false
}

// Snapshot is a deep copy of the store for rendering.
type Snapshot struct {
	Conversations    []api.Conversation
	Speakers         []api.Speaker
	OpenConversation *api.Conversation
	OpenSpeaker      *api.Speaker
}

// Speaker looks up a speaker in the snapshot.
func (s Snapshot) Speaker(id api.ID) (api.Speaker, bool) {
	for _, sp := range s.Speakers {
		if sp.ID == id {
			return sp, true
		}
	}
	return api.Speaker{}, false
}

// Snapshot copies the current state. Mutating the result never affects the
// store.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Conversations: make([]api.Conversation, len(s.conversations)),
		Speakers:      make([]api.Speaker, 0, len(s.speakerOrder)),
	}
	copy(snap.Conversations, s.conversations)
	for _, id := range s.speakerOrder {
		snap.Speakers = append(snap.Speakers, s.speakers[id])
	}
	if s.open != nil {
		c := cloneConversation(*s.open)
		snap.OpenConversation = &c
	}
	if sp, ok := s.speakers[s.openSpeakerID]; ok && s.openSpeakerID != "" {
		snap.OpenSpeaker = &sp
	}
	return snap
}

func (s *Store) conversationIndex(id api.ID) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) utteranceIndex(id api.ID) int {
	if s.open == nil {
		return -1
	}
	for i, u := range s.open.Utterances {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func cloneConversation(c api.Conversation) api.Conversation {
	if c.Utterances != nil {
		utts := make([]api.Utterance, len(c.Utterances))
		copy(utts, c.Utterances)
		c.Utterances = utts
	}
	return c
}
