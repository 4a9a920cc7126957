// Package view projects a state.Snapshot into display records. Every
// function is pure: the same snapshot always yields the same records, so
// callers simply re-render on any change.
package view

import (
	"sort"
	"strings"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
	"github.com/jwulff/speakerdash/internal/state"
)

// UnassignedLabel is shown for utterances without a speaker.
const UnassignedLabel = "Unknown speaker"

// EmptyTextLabel is shown for utterances without a transcription.
const EmptyTextLabel = "(no transcription)"

// ConversationRow is one line of the conversation list.
type ConversationRow struct {
	ID       api.ID
	Title    string
	ShortID  string
	Date     string
	Duration string
	Speakers int
}

// ConversationRows lists the loaded conversations in store order.
func ConversationRows(snap state.Snapshot) []ConversationRow {
	rows := make([]ConversationRow, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		rows = append(rows, ConversationRow{
			ID:       c.ID,
			Title:    conversationTitle(c),
			ShortID:  format.ShortID(c.ConversationID),
			Date:     format.Date(c.CreatedAt),
			Duration: format.Seconds(c.DurationSeconds),
			Speakers: c.SpeakerCount,
		})
	}
	return rows
}

// SpeakerRow is one line of the speaker list.
type SpeakerRow struct {
	ID            api.ID
	Name          string
	Utterances    int
	Duration      string
	Conversations int
	Unknown       bool
}

// SpeakerRows lists the loaded speakers. conversations, when non-nil, maps
// speaker ids to the number of conversations they appear in.
func SpeakerRows(snap state.Snapshot, conversations map[api.ID]int) []SpeakerRow {
	rows := make([]SpeakerRow, 0, len(snap.Speakers))
	for _, sp := range snap.Speakers {
		rows = append(rows, SpeakerRow{
			ID:            sp.ID,
			Name:          sp.Name,
			Utterances:    sp.UtteranceCount,
			Duration:      format.Seconds(sp.TotalDurationSeconds),
			Conversations: conversations[sp.ID],
			Unknown:       sp.Name == api.UnknownSpeakerName,
		})
	}
	return rows
}

// UtteranceRow is one line of an open conversation's transcript.
type UtteranceRow struct {
	ID        api.ID
	SpeakerID api.ID
	Speaker   string
	Start     string
	End       string
	Duration  string
	Text      string
	NoText    bool
	AudioURL  string
}

// UtteranceRows lists the open conversation's utterances, or nil when none
// is open.
func UtteranceRows(snap state.Snapshot) []UtteranceRow {
	if snap.OpenConversation == nil {
		return nil
	}
	rows := make([]UtteranceRow, 0, len(snap.OpenConversation.Utterances))
	for _, u := range snap.OpenConversation.Utterances {
		row := UtteranceRow{
			ID:        u.ID,
			SpeakerID: u.SpeakerID,
			Speaker:   u.SpeakerName,
			Start:     format.Clock(u.StartMs),
			End:       format.Clock(u.EndMs),
			Duration:  format.Seconds(u.DurationSeconds()),
			Text:      u.Text,
			AudioURL:  u.AudioURL,
		}
		if row.Speaker == "" {
			row.Speaker = UnassignedLabel
		}
		if strings.TrimSpace(row.Text) == "" {
			row.Text = EmptyTextLabel
			row.NoText = true
		}
		rows = append(rows, row)
	}
	return rows
}

// Header summarizes the open conversation.
type Header struct {
	ID         api.ID
	Title      string
	ShortID    string
	Date       string
	Duration   string
	Speakers   int
	Utterances int
}

// ConversationHeader describes the open conversation.
func ConversationHeader(snap state.Snapshot) (Header, bool) {
	c := snap.OpenConversation
	if c == nil {
		return Header{}, false
	}
	return Header{
		ID:         c.ID,
		Title:      conversationTitle(*c),
		ShortID:    format.ShortID(c.ConversationID),
		Date:       format.Date(c.CreatedAt),
		Duration:   format.Seconds(c.DurationSeconds),
		Speakers:   c.SpeakerCount,
		Utterances: len(c.Utterances),
	}, true
}

// SpeakerCard describes the open speaker.
type SpeakerCard struct {
	ID            api.ID
	Name          string
	Utterances    int
	Duration      string
	Average       string
	Conversations int
}

// SpeakerDetail describes the open speaker.
func SpeakerDetail(snap state.Snapshot, conversations map[api.ID]int) (SpeakerCard, bool) {
	sp := snap.OpenSpeaker
	if sp == nil {
		return SpeakerCard{}, false
	}
	avg := 0.0
	if sp.UtteranceCount > 0 {
		avg = sp.TotalDurationSeconds / float64(sp.UtteranceCount)
	}
	return SpeakerCard{
		ID:            sp.ID,
		Name:          sp.Name,
		Utterances:    sp.UtteranceCount,
		Duration:      format.Seconds(sp.TotalDurationSeconds),
		Average:       format.Seconds(avg),
		Conversations: conversations[sp.ID],
	}, true
}

// ConversationSpeaker is one distinct speaker of the open conversation.
type ConversationSpeaker struct {
	ID         api.ID
	Name       string
	Utterances int
	Duration   string
}

// ConversationSpeakers lists the distinct speakers of the open conversation
// in order of first appearance. Unassigned utterances are grouped last.
func ConversationSpeakers(snap state.Snapshot) []ConversationSpeaker {
	if snap.OpenConversation == nil {
		return nil
	}
	type acc struct {
		speaker ConversationSpeaker
		seconds float64
	}
	var order []api.ID
	byID := map[api.ID]*acc{}
	var unassigned *acc
	for _, u := range snap.OpenConversation.Utterances {
		var a *acc
		if u.SpeakerID == "" {
			if unassigned == nil {
				unassigned = &acc{speaker: ConversationSpeaker{Name: UnassignedLabel}}
			}
			a = unassigned
		} else {
			a = byID[u.SpeakerID]
			if a == nil {
				a = &acc{speaker: ConversationSpeaker{ID: u.SpeakerID, Name: u.SpeakerName}}
				byID[u.SpeakerID] = a
				order = append(order, u.SpeakerID)
			}
		}
		a.speaker.Utterances++
		a.seconds += u.DurationSeconds()
	}
	out := make([]ConversationSpeaker, 0, len(order)+1)
	for _, id := range order {
		a := byID[id]
		a.speaker.Duration = format.Seconds(a.seconds)
		out = append(out, a.speaker)
	}
	if unassigned != nil {
		unassigned.speaker.Duration = format.Seconds(unassigned.seconds)
		out = append(out, unassigned.speaker)
	}
	return out
}

// PickerOption is one choice in a speaker picker.
type PickerOption struct {
	ID      api.ID
	Name    string
	Current bool
}

// SpeakerPicker lists speakers alphabetically, keeping those whose name
// contains filter (case-insensitive). currentID is flagged.
func SpeakerPicker(snap state.Snapshot, currentID api.ID, filter string) []PickerOption {
	filter = strings.ToLower(strings.TrimSpace(filter))
	opts := make([]PickerOption, 0, len(snap.Speakers))
	for _, sp := range snap.Speakers {
		if filter != "" && !strings.Contains(strings.ToLower(sp.Name), filter) {
			continue
		}
		opts = append(opts, PickerOption{ID: sp.ID, Name: sp.Name, Current: sp.ID == currentID})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Name) < strings.ToLower(opts[j].Name)
	})
	return opts
}

// DeletePrompt is the confirmation shown before deleting a speaker.
type DeletePrompt struct {
	SpeakerID  api.ID
	Name       string
	Utterances int
	Message    string
	// Blocked is set when the deletion cannot proceed.
	Blocked bool
}

// DeleteSpeakerPrompt builds the confirmation for deleting speakerID.
func DeleteSpeakerPrompt(snap state.Snapshot, speakerID api.ID) (DeletePrompt, bool) {
	sp, ok := snap.Speaker(speakerID)
	if !ok {
		return DeletePrompt{}, false
	}
	p := DeletePrompt{SpeakerID: sp.ID, Name: sp.Name, Utterances: sp.UtteranceCount}
	switch {
	case sp.Name == api.UnknownSpeakerName && sp.UtteranceCount > 0:
		p.Blocked = true
		p.Message = "The unknown speaker still has " + plural(sp.UtteranceCount, "utterance") + " and cannot be deleted."
	case sp.UtteranceCount > 0:
		p.Message = "Delete " + sp.Name + "? " + plural(sp.UtteranceCount, "utterance") + " will be moved to " + api.UnknownSpeakerName + "."
	default:
		p.Message = "Delete " + sp.Name + "?"
	}
	return p, true
}

// SpeakerConversationCounts counts, for each speaker, the conversations whose
// utterances mention it. Conversations without loaded utterances are skipped.
func SpeakerConversationCounts(convs []api.Conversation) map[api.ID]int {
	counts := map[api.ID]int{}
	for _, c := range convs {
		seen := map[api.ID]bool{}
		for _, u := range c.Utterances {
			if u.SpeakerID == "" || seen[u.SpeakerID] {
				continue
			}
			seen[u.SpeakerID] = true
			counts[u.SpeakerID]++
		}
	}
	return counts
}

// EmbeddingRow is one enrolled voice in the embeddings screen.
type EmbeddingRow struct {
	Speaker    string
	Count      int
	Embeddings []string
}

// EmbeddingRows lists enrolled voices by speaker name.
func EmbeddingRows(groups []api.EmbeddingSpeaker) []EmbeddingRow {
	rows := make([]EmbeddingRow, 0, len(groups))
	for _, g := range groups {
		row := EmbeddingRow{Speaker: g.Name, Count: len(g.Embeddings)}
		for _, e := range g.Embeddings {
			row.Embeddings = append(row.Embeddings, e.ID)
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Speaker) < strings.ToLower(rows[j].Speaker)
	})
	return rows
}

func conversationTitle(c api.Conversation) string {
	if name := strings.TrimSpace(c.DisplayName); name != "" {
		return name
	}
	return "Conversation " + format.ShortID(c.ConversationID)
}

func plural(n int, word string) string {
	s := format.Count(n) + " " + word
	if n != 1 {
		s += "s"
	}
	return s
}
