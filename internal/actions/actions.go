// Package actions runs user edits against the backend. Each action issues
// its requests, waits for the server to confirm, and only then returns the
// patch that mirrors the change locally. Nothing is applied on failure.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/view"
)

// Client is the part of the API client the actions use.
type Client interface {
	UpdateConversation(ctx context.Context, id api.ID, displayName string) error
	DeleteConversation(ctx context.Context, id api.ID) error
	CreateSpeaker(ctx context.Context, name string) (api.Speaker, error)
	UpdateSpeaker(ctx context.Context, id api.ID, name string) (string, error)
	DeleteSpeaker(ctx context.Context, id api.ID) (api.DeleteSpeakerResult, error)
	ReassignAllUtterances(ctx context.Context, fromID, toID, conversationID api.ID) (api.ReassignResult, error)
	UpdateUtterance(ctx context.Context, id api.ID, patch api.UtterancePatch) error
}

// Level is the severity of a Notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Failure
)

// Notice is the message shown to the user once an action settles.
type Notice struct {
	Level Level
	Text  string
}

// Result is the outcome of an action. Patch covers every step the server
// confirmed, even when a later step failed.
type Result struct {
	Patch  state.Patch
	Notice Notice
}

// Apply applies the result's patch, if any.
func (r Result) Apply(s *state.Store) error {
	if r.Patch == nil {
		return nil
	}
	return r.Patch.Apply(s)
}

// Target names the speaker an edit assigns to. An empty ID means the speaker
// is looked up or created by Name.
type Target struct {
	ID   api.ID
	Name string
}

// ErrUnknownSpeakerInUse is returned when deleting the catch-all speaker
// while it still holds utterances.
var ErrUnknownSpeakerInUse = errors.New("the unknown speaker still has utterances")

// FailureNotice turns an action error into a user-facing notice.
func FailureNotice(action string, err error) Notice {
	text := fmt.Sprintf("Could not %s: %s", action, api.Detail(err))
	if api.KindOf(err) == api.KindTimeout {
		text += " (request timed out)"
	}
	return Notice{Level: Failure, Text: text}
}

// RenameConversation sets a conversation's display name.
func RenameConversation(ctx context.Context, c Client, id api.ID, name string) (Result, error) {
	name = strings.TrimSpace(name)
	if err := c.UpdateConversation(ctx, id, name); err != nil {
		return Result{}, err
	}
	return Result{
		Patch:  state.ConversationNamePatch{ConversationID: id, Name: name},
		Notice: Notice{Level: Success, Text: fmt.Sprintf("Conversation renamed to %q.", name)},
	}, nil
}

// DeleteConversation removes a conversation and its utterances.
func DeleteConversation(ctx context.Context, c Client, id api.ID) (Result, error) {
	if err := c.DeleteConversation(ctx, id); err != nil {
		return Result{}, err
	}
	return Result{
		Patch:  state.RemoveConversationPatch{ConversationID: id},
		Notice: Notice{Level: Success, Text: "Conversation deleted."},
	}, nil
}

// RenameSpeaker renames a speaker; the new name cascades to every loaded
// utterance attributed to it.
func RenameSpeaker(ctx context.Context, c Client, id api.ID, name string) (Result, error) {
	stored, err := c.UpdateSpeaker(ctx, id, name)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Patch:  state.SpeakerNamePatch{SpeakerID: id, Name: stored},
		Notice: Notice{Level: Success, Text: fmt.Sprintf("Speaker renamed to %q.", stored)},
	}, nil
}

// CreateSpeaker adds a speaker. A duplicate name yields the existing speaker.
func CreateSpeaker(ctx context.Context, c Client, name string) (Result, error) {
	sp, err := c.CreateSpeaker(ctx, name)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Patch:  state.AddSpeakerPatch{Speaker: sp},
		Notice: Notice{Level: Success, Text: fmt.Sprintf("Speaker %q ready.", sp.Name)},
	}, nil
}

// resolveTarget returns the speaker to assign to, creating it by name when
// needed. The returned patch is non-nil only when a speaker was created.
func resolveTarget(ctx context.Context, c Client, t Target) (api.Speaker, state.Patch, error) {
	if t.ID != "" {
		return api.Speaker{ID: t.ID, Name: t.Name}, nil, nil
	}
	sp, err := c.CreateSpeaker(ctx, t.Name)
	if err != nil {
		return api.Speaker{}, nil, err
	}
	return sp, state.AddSpeakerPatch{Speaker: sp}, nil
}

// AssignUtteranceSpeaker attributes one utterance to target.
func AssignUtteranceSpeaker(ctx context.Context, c Client, utteranceID api.ID, target Target) (Result, error) {
	sp, created, err := resolveTarget(ctx, c, target)
	if err != nil {
		return Result{}, err
	}
	id := sp.ID
	if err := c.UpdateUtterance(ctx, utteranceID, api.UtterancePatch{SpeakerID: &id}); err != nil {
		return Result{Patch: created}, err
	}
	return Result{
		Patch: state.Patches{
			created,
			state.UtteranceSpeakerPatch{UtteranceID: utteranceID, SpeakerID: sp.ID, SpeakerName: sp.Name},
		},
		Notice: Notice{Level: Success, Text: fmt.Sprintf("Utterance assigned to %s.", sp.Name)},
	}, nil
}

// Bulk describes a reassignment of every utterance of one speaker within a
// conversation. FromName is the speaker name as displayed when the edit was
// started; the local patch groups utterances by it.
type Bulk struct {
	ConversationID api.ID
	FromID         api.ID
	FromName       string
	Target         Target
}

// ReassignAllInConversation moves every utterance of b.FromID in
// b.ConversationID to b.Target.
func ReassignAllInConversation(ctx context.Context, c Client, b Bulk) (Result, error) {
	if b.ConversationID == "" {
		return Result{}, &api.Error{Kind: api.KindValidation, Op: "reassign utterances", Message: "conversation is required"}
	}
	sp, created, err := resolveTarget(ctx, c, b.Target)
	if err != nil {
		return Result{}, err
	}
	if sp.ID == b.FromID {
		return Result{Patch: created, Notice: Notice{Level: Info, Text: "Nothing to reassign."}}, nil
	}
	res, err := c.ReassignAllUtterances(ctx, b.FromID, sp.ID, b.ConversationID)
	if err != nil {
		return Result{Patch: created}, err
	}
	return Result{
		Patch: state.Patches{created, bulkPatch(b, sp, res.Count)},
		Notice: Notice{Level: Success, Text: fmt.Sprintf("Reassigned %s from %s to %s.",
			utterances(res.Count), b.FromName, sp.Name)},
	}, nil
}

// bulkPatch mirrors a confirmed bulk move. While the conversation is open its
// utterances are regrouped by the captured name; otherwise only the speaker
// totals move.
func bulkPatch(b Bulk, to api.Speaker, count int) state.Patch {
	return state.PatchFunc(func(s *state.Store) error {
		if open, ok := s.OpenConversationID(); ok && open == b.ConversationID {
			if n := s.PatchAllUtterancesForSpeaker(b.FromName, to.ID, to.Name); n != count {
				s.MarkStale()
			}
			return nil
		}
		return state.Reassignment{
			FromID:         b.FromID,
			ToID:           to.ID,
			ToName:         to.Name,
			Count:          count,
			ConversationID: b.ConversationID,
		}.Apply(s)
	})
}

// EditUtteranceText replaces an utterance's transcription.
func EditUtteranceText(ctx context.Context, c Client, utteranceID api.ID, text string) (Result, error) {
	if err := c.UpdateUtterance(ctx, utteranceID, api.UtterancePatch{Text: &text}); err != nil {
		return Result{}, err
	}
	return Result{
		Patch:  state.UtteranceTextPatch{UtteranceID: utteranceID, Text: text},
		Notice: Notice{Level: Success, Text: "Utterance text updated."},
	}, nil
}

// DeleteSpeaker removes speaker. Its utterances, in every conversation, are
// first moved to the unknown speaker, which is created when missing.
func DeleteSpeaker(ctx context.Context, c Client, speaker api.Speaker) (Result, error) {
	if speaker.Name == api.UnknownSpeakerName && speaker.UtteranceCount > 0 {
		return Result{}, &api.Error{Kind: api.KindValidation, Op: "delete speaker", Message: ErrUnknownSpeakerInUse.Error(), Err: ErrUnknownSpeakerInUse}
	}

	var done state.Patches
	moved := 0
	if speaker.UtteranceCount > 0 {
		unknown, err := c.CreateSpeaker(ctx, api.UnknownSpeakerName)
		if err != nil {
			return Result{}, err
		}
		done = append(done, state.AddSpeakerPatch{Speaker: unknown})
		res, err := c.ReassignAllUtterances(ctx, speaker.ID, unknown.ID, "")
		if err != nil {
			return Result{Patch: done}, err
		}
		moved = res.Count
		done = append(done, state.Reassignment{
			FromID: speaker.ID,
			ToID:   unknown.ID,
			ToName: unknown.Name,
			Count:  res.Count,
		})
	}
	if _, err := c.DeleteSpeaker(ctx, speaker.ID); err != nil {
		return Result{Patch: done}, err
	}
	done = append(done, state.RemoveSpeakerPatch{SpeakerID: speaker.ID})

	text := fmt.Sprintf("Speaker %s deleted.", speaker.Name)
	if moved > 0 {
		text = fmt.Sprintf("Speaker %s deleted; %s moved to %s.", speaker.Name, utterances(moved), api.UnknownSpeakerName)
	}
	return Result{Patch: done, Notice: Notice{Level: Success, Text: text}}, nil
}

// ResolveUtterance finds an utterance for editing. The store is preferred;
// the rendered rows are a lower-confidence fallback and are flagged as such.
func ResolveUtterance(s *state.Store, rows []view.UtteranceRow, id api.ID) (view.Recovered, bool) {
	if u, ok := s.Utterance(id); ok {
		return view.Recovered{Utterance: u, Provenance: view.ProvenanceServer}, true
	}
	return view.RecoverUtterance(rows, id)
}

func utterances(n int) string {
	if n == 1 {
		return "1 utterance"
	}
	return fmt.Sprintf("%d utterances", n)
}
