package state

import (
	"errors"
	"fmt"

	"github.com/jwulff/speakerdash/internal/api"
)

// ErrSpeakerInUse is returned by RemoveSpeaker while utterances still
// reference the speaker.
var ErrSpeakerInUse = errors.New("speaker still has utterances")

// Patches below run after the server has confirmed a mutation. Each touches
// only the entities named by id and keeps the derived counters
// (Speaker.UtteranceCount, Speaker.TotalDurationSeconds,
// Conversation.SpeakerCount) equal to what a fresh load would report.

// PatchUtteranceSpeaker reassigns one loaded utterance. It reports false when
// the utterance is not part of the open conversation; the server-side move
// still shifted speaker totals, so both lists are marked stale.
func (s *Store) PatchUtteranceSpeaker(utteranceID, speakerID api.ID, speakerName string) bool {
	i := s.utteranceIndex(utteranceID)
	if i < 0 {
		s.logger.Debug().Str("utterance_id", utteranceID.String()).Msg("assigned utterance not loaded, marking lists stale")
		s.MarkStale()
		return false
	}
	s.moveUtterance(&s.open.Utterances[i], speakerID, speakerName)
	s.recountOpenSpeakers()
	return true
}

// PatchAllUtterancesForSpeaker reassigns every loaded utterance whose cached
// speaker name is oldName. Grouping is by name as displayed, so a rename that
// races the edit may leave a stale grouping. It returns the number patched.
func (s *Store) PatchAllUtterancesForSpeaker(oldName string, speakerID api.ID, speakerName string) int {
	if s.open == nil {
		return 0
	}
	n := 0
	for i := range s.open.Utterances {
		u := &s.open.Utterances[i]
		if u.SpeakerName != oldName {
			continue
		}
		s.moveUtterance(u, speakerID, speakerName)
		n++
	}
	if n > 0 {
		s.recountOpenSpeakers()
	}
	return n
}

// PatchSpeakerName renames a speaker and refreshes the cached name on every
// loaded utterance attributed to it. It returns the number of utterances
// touched.
func (s *Store) PatchSpeakerName(id api.ID, name string) int {
	if sp, ok := s.speakers[id]; ok {
		sp.Name = name
		s.speakers[id] = sp
	}
	if s.open == nil {
		return 0
	}
	n := 0
	for i := range s.open.Utterances {
		if s.open.Utterances[i].SpeakerID == id {
			s.open.Utterances[i].SpeakerName = name
			n++
		}
	}
	return n
}

// PatchUtteranceText replaces a loaded utterance's text.
func (s *Store) PatchUtteranceText(utteranceID api.ID, text string) bool {
	i := s.utteranceIndex(utteranceID)
	if i < 0 {
		return false
	}
	s.open.Utterances[i].Text = text
	return true
}

// PatchConversationName sets a conversation's display name in the list and
// in the open conversation.
func (s *Store) PatchConversationName(id api.ID, name string) bool {
	found := false
	if i := s.conversationIndex(id); i >= 0 {
		s.conversations[i].DisplayName = name
		found = true
	}
	if s.open != nil && s.open.ID == id {
		s.open.DisplayName = name
		found = true
	}
	return found
}

// Reassignment mirrors a confirmed server-side move of utterances from one
// speaker to another. An empty ConversationID means every conversation.
type Reassignment struct {
	FromID         api.ID
	ToID           api.ID
	ToName         string
	Count          int
	ConversationID api.ID
}

// ReassignSpeaker applies r to the loaded state and returns the number of
// loaded utterances it changed.
//
// Utterances of the open conversation are moved exactly. Speaker totals move
// by the server's count; when the moved utterances are not loaded the
// duration moved is prorated from the source speaker's average, and the lists
// it cannot reproduce exactly are marked stale. A global move
// into a speaker that already had utterances may merge speakers inside
// conversations that are not loaded, so the conversation list is marked stale.
func (s *Store) ReassignSpeaker(r Reassignment) int {
	from := s.speakers[r.FromID]
	to, toKnown := s.speakers[r.ToID]

	moved, movedSeconds := 0, 0.0
	if s.open != nil && (r.ConversationID == "" || r.ConversationID == s.open.ID) {
		for i := range s.open.Utterances {
			u := &s.open.Utterances[i]
			if u.SpeakerID != r.FromID {
				continue
			}
			movedSeconds += u.DurationSeconds()
			u.SpeakerID = r.ToID
			u.SpeakerName = r.ToName
			moved++
		}
		if moved > 0 {
			s.recountOpenSpeakers()
		}
	}

	var count int
	var seconds float64
	switch {
	case r.ConversationID == "":
		count, seconds = from.UtteranceCount, from.TotalDurationSeconds
		if r.Count != from.UtteranceCount {
			s.logger.Warn().
				Str("from_speaker_id", r.FromID.String()).
				Int("server_count", r.Count).
				Int("loaded_count", from.UtteranceCount).
				Msg("global reassignment count differs from speaker total")
			count, seconds = r.Count, 0
			if from.UtteranceCount > 0 {
				seconds = from.TotalDurationSeconds * float64(r.Count) / float64(from.UtteranceCount)
			}
			s.speakersStale = true
		}
		if toKnown && to.UtteranceCount > 0 && from.UtteranceCount > 0 {
			s.conversationsStale = true
		}
	case s.open != nil && r.ConversationID == s.open.ID:
		count, seconds = moved, movedSeconds
		if r.Count != moved {
			s.logger.Warn().
				Str("from_speaker_id", r.FromID.String()).
				Int("server_count", r.Count).
				Int("loaded_count", moved).
				Msg("reassignment count differs from loaded utterances")
			s.speakersStale = true
		}
	default:
		count = r.Count
		if from.UtteranceCount > 0 {
			seconds = from.TotalDurationSeconds * float64(count) / float64(from.UtteranceCount)
		}
		if count < from.UtteranceCount {
			s.speakersStale = true
		}
		if count > 0 {
			s.conversationsStale = true
		}
	}
	s.adjustSpeaker(r.FromID, -count, -seconds)
	s.adjustSpeaker(r.ToID, count, seconds)
	if toKnown && r.ToName != "" {
		to = s.speakers[r.ToID]
		to.Name = r.ToName
		s.speakers[r.ToID] = to
	}
	return moved
}

// AddSpeaker inserts a newly created speaker. When the id is already loaded
// (the server returns the existing speaker for a duplicate name) only the
// name is refreshed.
func (s *Store) AddSpeaker(sp api.Speaker) {
	if existing, ok := s.speakers[sp.ID]; ok {
		existing.Name = sp.Name
		s.speakers[sp.ID] = existing
		return
	}
	s.speakers[sp.ID] = sp
	s.speakerOrder = append(s.speakerOrder, sp.ID)
}

// RemoveConversation drops a deleted conversation. When it was open its
// utterances are subtracted from the speaker totals; otherwise the speaker
// list is marked stale.
func (s *Store) RemoveConversation(id api.ID) bool {
	removed := false
	if s.open != nil && s.open.ID == id {
		for _, u := range s.open.Utterances {
			s.adjustSpeaker(u.SpeakerID, -1, -u.DurationSeconds())
		}
		s.open = nil
		removed = true
	} else if i := s.conversationIndex(id); i >= 0 && s.conversations[i].SpeakerCount > 0 {
		s.speakersStale = true
	}
	if i := s.conversationIndex(id); i >= 0 {
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
		removed = true
	}
	return removed
}

// RemoveSpeaker drops a deleted speaker. Its utterances must have been
// reassigned first.
func (s *Store) RemoveSpeaker(id api.ID) error {
	sp, ok := s.speakers[id]
	if !ok {
		return nil
	}
	inUse := sp.UtteranceCount > 0
	if s.open != nil {
		for _, u := range s.open.Utterances {
			if u.SpeakerID == id {
				inUse = true
				break
			}
		}
	}
	if inUse {
		return fmt.Errorf("remove speaker %s (%s): %w", id, sp.Name, ErrSpeakerInUse)
	}
	delete(s.speakers, id)
	for i, oid := range s.speakerOrder {
		if oid == id {
			s.speakerOrder = append(s.speakerOrder[:i], s.speakerOrder[i+1:]...)
			break
		}
	}
	if s.openSpeakerID == id {
		s.openSpeakerID = ""
	}
	return nil
}

// moveUtterance points u at another speaker and moves its duration between
// the two speakers' totals.
func (s *Store) moveUtterance(u *api.Utterance, speakerID api.ID, speakerName string) {
	if u.SpeakerID != speakerID {
		d := u.DurationSeconds()
		s.adjustSpeaker(u.SpeakerID, -1, -d)
		s.adjustSpeaker(speakerID, 1, d)
	}
	u.SpeakerID = speakerID
	u.SpeakerName = speakerName
}

func (s *Store) adjustSpeaker(id api.ID, count int, seconds float64) {
	if id == "" {
		return
	}
	sp, ok := s.speakers[id]
	if !ok {
		return
	}
	sp.UtteranceCount += count
	if sp.UtteranceCount < 0 {
		sp.UtteranceCount = 0
	}
	sp.TotalDurationSeconds += seconds
	if sp.TotalDurationSeconds < 1e-9 {
		sp.TotalDurationSeconds = 0
	}
	s.speakers[id] = sp
}

// recountOpenSpeakers recomputes the open conversation's distinct speaker
// count and mirrors it into the list entry.
func (s *Store) recountOpenSpeakers() {
	seen := make(map[api.ID]struct{})
	for _, u := range s.open.Utterances {
		if u.SpeakerID != "" {
			seen[u.SpeakerID] = struct{}{}
		}
	}
	s.open.SpeakerCount = len(seen)
	if i := s.conversationIndex(s.open.ID); i >= 0 {
		s.conversations[i].SpeakerCount = len(seen)
	}
}

// Patch is a store mutation computed off the owning goroutine and applied on
// it.
type Patch interface {
	Apply(s *Store) error
}

// PatchFunc adapts a function to Patch.
type PatchFunc func(s *Store) error

func (f PatchFunc) Apply(s *Store) error { return f(s) }

// Patches applies its elements in order, stopping at the first error.
type Patches []Patch

func (ps Patches) Apply(s *Store) error {
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Apply(s); err != nil {
			return err
		}
	}
	return nil
}

// UtteranceSpeakerPatch is PatchUtteranceSpeaker as a value.
type UtteranceSpeakerPatch struct {
	UtteranceID api.ID
	SpeakerID   api.ID
	SpeakerName string
}

func (p UtteranceSpeakerPatch) Apply(s *Store) error {
	s.PatchUtteranceSpeaker(p.UtteranceID, p.SpeakerID, p.SpeakerName)
	return nil
}

// BulkSpeakerPatch is PatchAllUtterancesForSpeaker as a value.
type BulkSpeakerPatch struct {
	OldName     string
	SpeakerID   api.ID
	SpeakerName string
}

func (p BulkSpeakerPatch) Apply(s *Store) error {
	s.PatchAllUtterancesForSpeaker(p.OldName, p.SpeakerID, p.SpeakerName)
	return nil
}

// SpeakerNamePatch is PatchSpeakerName as a value.
type SpeakerNamePatch struct {
	SpeakerID api.ID
	Name      string
}

func (p SpeakerNamePatch) Apply(s *Store) error {
	s.PatchSpeakerName(p.SpeakerID, p.Name)
	return nil
}

// UtteranceTextPatch is PatchUtteranceText as a value.
type UtteranceTextPatch struct {
	UtteranceID api.ID
	Text        string
}

func (p UtteranceTextPatch) Apply(s *Store) error {
	s.PatchUtteranceText(p.UtteranceID, p.Text)
	return nil
}

// ConversationNamePatch is PatchConversationName as a value.
type ConversationNamePatch struct {
	ConversationID api.ID
	Name           string
}

func (p ConversationNamePatch) Apply(s *Store) error {
	s.PatchConversationName(p.ConversationID, p.Name)
	return nil
}

func (r Reassignment) Apply(s *Store) error {
	s.ReassignSpeaker(r)
	return nil
}

// AddSpeakerPatch is AddSpeaker as a value.
type AddSpeakerPatch struct {
	Speaker api.Speaker
}

func (p AddSpeakerPatch) Apply(s *Store) error {
	s.AddSpeaker(p.Speaker)
	return nil
}

// RemoveConversationPatch is RemoveConversation as a value.
type RemoveConversationPatch struct {
	ConversationID api.ID
}

func (p RemoveConversationPatch) Apply(s *Store) error {
	s.RemoveConversation(p.ConversationID)
	return nil
}

// RemoveSpeakerPatch is RemoveSpeaker as a value.
type RemoveSpeakerPatch struct {
	SpeakerID api.ID
}

func (p RemoveSpeakerPatch) Apply(s *Store) error {
	return s.RemoveSpeaker(p.SpeakerID)
}
