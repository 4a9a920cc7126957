package state

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/api"
)

// memBackend is an in-memory stand-in for the REST backend. Derived fields
// are computed from utterances on every read, as the server does.
type memBackend struct {
	convs    []api.Conversation
	speakers []api.Speaker
	fail     error
	gets     int
	lists    int
}

func (b *memBackend) speakerName(id api.ID) string {
	for _, sp := range b.speakers {
		if sp.ID == id {
			return sp.Name
		}
	}
	return ""
}

func (b *memBackend) conversation(c api.Conversation) api.Conversation {
	out := c
	out.Utterances = make([]api.Utterance, len(c.Utterances))
	seen := map[api.ID]bool{}
	for i, u := range c.Utterances {
		u.ConversationID = c.ID
		u.SpeakerName = b.speakerName(u.SpeakerID)
		out.Utterances[i] = u
		if u.SpeakerID != "" {
			seen[u.SpeakerID] = true
		}
	}
	out.SpeakerCount = len(seen)
	return out
}

func (b *memBackend) ListConversations(ctx context.Context) ([]api.Conversation, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	out := make([]api.Conversation, 0, len(b.convs))
	for _, c := range b.convs {
		conv := b.conversation(c)
		conv.Utterances = nil
		out = append(out, conv)
	}
	return out, nil
}

func (b *memBackend) ListSpeakers(ctx context.Context) ([]api.Speaker, error) {
	b.lists++
	if b.fail != nil {
		return nil, b.fail
	}
	out := make([]api.Speaker, 0, len(b.speakers))
	for _, sp := range b.speakers {
		sp.UtteranceCount, sp.TotalDurationSeconds = 0, 0
		for _, c := range b.convs {
			for _, u := range c.Utterances {
				if u.SpeakerID == sp.ID {
					sp.UtteranceCount++
					sp.TotalDurationSeconds += u.DurationSeconds()
				}
			}
		}
		out = append(out, sp)
	}
	return out, nil
}

func (b *memBackend) GetConversation(ctx context.Context, id api.ID) (api.Conversation, error) {
	b.gets++
	if b.fail != nil {
		return api.Conversation{}, b.fail
	}
	for _, c := range b.convs {
		if c.ID == id {
			return b.conversation(c), nil
		}
	}
	return api.Conversation{}, &api.Error{Kind: api.KindNotFound, Op: "get conversation", Message: "Conversation not found"}
}

func (b *memBackend) setSpeaker(uttID, speakerID api.ID) {
	for ci := range b.convs {
		for ui := range b.convs[ci].Utterances {
			if b.convs[ci].Utterances[ui].ID == uttID {
				b.convs[ci].Utterances[ui].SpeakerID = speakerID
			}
		}
	}
}

func (b *memBackend) reassign(from, to, convID api.ID) int {
	n := 0
	for ci := range b.convs {
		if convID != "" && b.convs[ci].ID != convID {
			continue
		}
		for ui := range b.convs[ci].Utterances {
			if b.convs[ci].Utterances[ui].SpeakerID == from {
				b.convs[ci].Utterances[ui].SpeakerID = to
				n++
			}
		}
	}
	return n
}

func utt(id, speaker api.ID, startMs, endMs float64) api.Utterance {
	return api.Utterance{ID: id, SpeakerID: speaker, StartMs: startMs, EndMs: endMs, Text: "text " + string(id)}
}

func newBackend() *memBackend {
	return &memBackend{
		speakers: []api.Speaker{
			{ID: "1", Name: "Alice"},
			{ID: "2", Name: "Bob"},
			{ID: "3", Name: "Carol"},
		},
		convs: []api.Conversation{
			{ID: "c1", ConversationID: "uuid-c1", DurationSeconds: 60, Utterances: []api.Utterance{
				utt("u1", "1", 0, 1500),
				utt("u2", "1", 1500, 3500),
				utt("u3", "2", 3500, 4000),
			}},
			{ID: "c2", ConversationID: "uuid-c2", DurationSeconds: 30, Utterances: []api.Utterance{
				utt("u4", "1", 0, 1000),
				utt("u5", "3", 1000, 1500),
			}},
		},
	}
}

// loaded returns a store with both lists loaded and convID open.
func loaded(t *testing.T, b *memBackend, convID api.ID) *Store {
	t.Helper()
	s := NewStore(b, zerolog.Nop())
	ctx := context.Background()
	if err := s.LoadConversations(ctx); err != nil {
		t.Fatalf("load conversations: %v", err)
	}
	if err := s.LoadSpeakers(ctx); err != nil {
		t.Fatalf("load speakers: %v", err)
	}
	if convID != "" {
		if err := s.OpenConversationByID(ctx, convID); err != nil {
			t.Fatalf("open %s: %v", convID, err)
		}
	}
	return s
}

// assertNoDrift checks the store against a fresh load from the backend.
func assertNoDrift(t *testing.T, s *Store, b *memBackend) {
	t.Helper()
	var convID api.ID
	if id, ok := s.OpenConversationID(); ok {
		convID = id
	}
	fresh := loaded(t, b, convID)
	got, want := s.Snapshot(), fresh.Snapshot()
	if !reflect.DeepEqual(got.Conversations, want.Conversations) {
		t.Errorf("conversations drifted:\n got %+v\nwant %+v", got.Conversations, want.Conversations)
	}
	if !reflect.DeepEqual(got.Speakers, want.Speakers) {
		t.Errorf("speakers drifted:\n got %+v\nwant %+v", got.Speakers, want.Speakers)
	}
	if !reflect.DeepEqual(got.OpenConversation, want.OpenConversation) {
		t.Errorf("open conversation drifted:\n got %+v\nwant %+v", got.OpenConversation, want.OpenConversation)
	}
}

func TestLoadFailureLeavesStateUntouched(t *testing.T) {
	b := newBackend()
	s := loaded(t, b, "c1")
	before := s.Snapshot()

	b.fail = &api.Error{Kind: api.KindServerError, Message: "boom"}
	if err := s.LoadConversations(context.Background()); !errors.Is(err, api.ErrServerError) {
		t.Fatalf("load conversations err = %v", err)
	}
	if err := s.LoadSpeakers(context.Background()); err == nil {
		t.Fatal("load speakers should fail")
	}
	if err := s.OpenConversationByID(context.Background(), "c2"); err == nil {
		t.Fatal("open should fail")
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Error("failed loads changed the store")
	}
}

func TestOpenConversationLazyLoadsSpeakers(t *testing.T) {
	b := newBackend()
	s := NewStore(b, zerolog.Nop())
	if !s.NeedsSpeakers() {
		t.Fatal("new store should need speakers")
	}
	if err := s.OpenConversationByID(context.Background(), "c1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.lists != 1 {
		t.Errorf("speaker lists = %d, want 1", b.lists)
	}
	if err := s.OpenConversationByID(context.Background(), "c2"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.lists != 1 {
		t.Errorf("speakers reloaded: lists = %d", b.lists)
	}
	snap := s.Snapshot()
	if snap.OpenConversation == nil || snap.OpenConversation.ID != "c2" {
		t.Fatalf("open = %+v", snap.OpenConversation)
	}
	for _, u := range snap.OpenConversation.Utterances {
		if u.ConversationID != "c2" {
			t.Errorf("utterance %s belongs to %s", u.ID, u.ConversationID)
		}
	}
}

func TestOpenConversationNotFound(t *testing.T) {
	s := loaded(t, newBackend(), "")
	err := s.OpenConversationByID(context.Background(), "missing")
	if api.KindOf(err) != api.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, ok := s.OpenConversationID(); ok {
		t.Error("nothing should be open")
	}
}

func TestReplaceSpeakersDuplicateLastWins(t *testing.T) {
	s := NewStore(nil, zerolog.Nop())
	s.ReplaceSpeakers([]api.Speaker{
		{ID: "1", Name: "Alice"},
		{ID: "2", Name: "Bob"},
		{ID: "1", Name: "Alicia", UtteranceCount: 4},
	})
	snap := s.Snapshot()
	if len(snap.Speakers) != 2 {
		t.Fatalf("speakers = %d, want 2", len(snap.Speakers))
	}
	if snap.Speakers[0].Name != "Alicia" || snap.Speakers[0].UtteranceCount != 4 {
		t.Errorf("first = %+v, want last duplicate", snap.Speakers[0])
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := loaded(t, newBackend(), "c1")
	snap := s.Snapshot()
	snap.OpenConversation.Utterances[0].Text = "mutated"
	snap.Conversations[0].DisplayName = "mutated"
	snap.Speakers[0].Name = "mutated"

	again := s.Snapshot()
	if again.OpenConversation.Utterances[0].Text == "mutated" ||
		again.Conversations[0].DisplayName == "mutated" ||
		again.Speakers[0].Name == "mutated" {
		t.Error("snapshot shares memory with the store")
	}
}

func TestOpenSpeaker(t *testing.T) {
	s := loaded(t, newBackend(), "")
	if s.OpenSpeaker("99") {
		t.Error("unknown speaker opened")
	}
	if !s.OpenSpeaker("2") {
		t.Fatal("speaker 2 not opened")
	}
	s.PatchSpeakerName("2", "Robert")
	if sp := s.Snapshot().OpenSpeaker; sp == nil || sp.Name != "Robert" {
		t.Errorf("open speaker = %+v", sp)
	}
	s.CloseSpeaker()
	if s.Snapshot().OpenSpeaker != nil {
		t.Error("speaker still open")
	}
}
