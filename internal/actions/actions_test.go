package actions

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/fixture"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/view"
)

// startBackend serves the seeded demo data: "Weekly sync" (Alice, Bob,
// SPEAKER_02) and an unnamed interview (Carol, Alice), plus an idle Dana.
func startBackend(t *testing.T) *api.Client {
	t.Helper()
	srv, closeStore, err := fixture.NewSeeded(context.Background())
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		closeStore()
	})
	return api.New(ts.URL)
}

// load builds a store from the backend with the conversation titled title
// open. "interview" opens the unnamed conversation; "" opens nothing.
func load(t *testing.T, c *api.Client, title string) *state.Store {
	t.Helper()
	ctx := context.Background()
	s := state.NewStore(c, zerolog.Nop())
	if err := s.LoadConversations(ctx); err != nil {
		t.Fatalf("load conversations: %v", err)
	}
	if err := s.LoadSpeakers(ctx); err != nil {
		t.Fatalf("load speakers: %v", err)
	}
	if title != "" {
		if err := s.OpenConversationByID(ctx, conversationID(t, s, title)); err != nil {
			t.Fatalf("open %q: %v", title, err)
		}
	}
	return s
}

func conversationID(t *testing.T, s *state.Store, title string) api.ID {
	t.Helper()
	want := title
	if title == "interview" {
		want = ""
	}
	for _, c := range s.Snapshot().Conversations {
		if c.DisplayName == want {
			return c.ID
		}
	}
	t.Fatalf("conversation %q not loaded", title)
	return ""
}

func speaker(t *testing.T, s *state.Store, name string) api.Speaker {
	t.Helper()
	sp, ok := s.SpeakerByName(name)
	if !ok {
		t.Fatalf("speaker %q not loaded", name)
	}
	return sp
}

func utteranceOf(t *testing.T, s *state.Store, speakerName string) api.Utterance {
	t.Helper()
	open := s.Snapshot().OpenConversation
	if open == nil {
		t.Fatal("no open conversation")
	}
	for _, u := range open.Utterances {
		if u.SpeakerName == speakerName {
			return u
		}
	}
	t.Fatalf("no utterance by %q", speakerName)
	return api.Utterance{}
}

func apply(t *testing.T, s *state.Store, res Result) {
	t.Helper()
	if err := res.Apply(s); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func speakerMap(speakers []api.Speaker) map[api.ID]api.Speaker {
	m := make(map[api.ID]api.Speaker, len(speakers))
	for _, sp := range speakers {
		m[sp.ID] = sp
	}
	return m
}

// assertMatchesServer compares the patched store with a fresh load.
func assertMatchesServer(t *testing.T, s *state.Store, c *api.Client) {
	t.Helper()
	ctx := context.Background()
	fresh := state.NewStore(c, zerolog.Nop())
	if err := fresh.LoadConversations(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fresh.LoadSpeakers(ctx); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.OpenConversationID(); ok {
		if err := fresh.OpenConversationByID(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	got, want := s.Snapshot(), fresh.Snapshot()
	if !reflect.DeepEqual(got.Conversations, want.Conversations) {
		t.Errorf("conversations differ:\n got %+v\nwant %+v", got.Conversations, want.Conversations)
	}
	if !reflect.DeepEqual(speakerMap(got.Speakers), speakerMap(want.Speakers)) {
		t.Errorf("speakers differ:\n got %+v\nwant %+v", got.Speakers, want.Speakers)
	}
	if !reflect.DeepEqual(got.OpenConversation, want.OpenConversation) {
		t.Errorf("open conversation differs:\n got %+v\nwant %+v", got.OpenConversation, want.OpenConversation)
	}
}

func TestAssignUtteranceSpeakerToExisting(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	bob := speaker(t, s, "Bob")
	u := utteranceOf(t, s, "SPEAKER_02")

	res, err := AssignUtteranceSpeaker(context.Background(), c, u.ID, Target{ID: bob.ID, Name: bob.Name})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	apply(t, s, res)
	if res.Notice.Level != Success || res.Notice.Text != "Utterance assigned to Bob." {
		t.Errorf("notice = %+v", res.Notice)
	}
	if got, _ := s.Utterance(u.ID); got.SpeakerID != bob.ID || got.SpeakerName != "Bob" {
		t.Errorf("utterance = %+v", got)
	}
	assertMatchesServer(t, s, c)
}

func TestAssignUtteranceSpeakerCreatesByName(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	u := utteranceOf(t, s, "Alice")

	res, err := AssignUtteranceSpeaker(context.Background(), c, u.ID, Target{Name: "Erin"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	apply(t, s, res)
	erin := speaker(t, s, "Erin")
	if erin.UtteranceCount != 1 {
		t.Errorf("Erin = %+v, want one utterance", erin)
	}
	assertMatchesServer(t, s, c)
}

func TestReassignAllInOpenConversation(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	alice, dana := speaker(t, s, "Alice"), speaker(t, s, "Dana")

	res, err := ReassignAllInConversation(context.Background(), c, Bulk{
		ConversationID: conversationID(t, s, "Weekly sync"),
		FromID:         alice.ID,
		FromName:       alice.Name,
		Target:         Target{ID: dana.ID, Name: dana.Name},
	})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	apply(t, s, res)
	if res.Notice.Text != "Reassigned 2 utterances from Alice to Dana." {
		t.Errorf("notice = %q", res.Notice.Text)
	}
	if s.SpeakersStale() || s.ConversationsStale() {
		t.Error("exact reassignment marked lists stale")
	}
	if a := speaker(t, s, "Alice"); a.UtteranceCount != 1 {
		t.Errorf("Alice keeps her interview utterance, got %+v", a)
	}
	assertMatchesServer(t, s, c)
}

func TestReassignAllInOtherConversation(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "interview")
	bob, dana := speaker(t, s, "Bob"), speaker(t, s, "Dana")

	res, err := ReassignAllInConversation(context.Background(), c, Bulk{
		ConversationID: conversationID(t, s, "Weekly sync"),
		FromID:         bob.ID,
		FromName:       bob.Name,
		Target:         Target{ID: dana.ID, Name: dana.Name},
	})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	apply(t, s, res)
	if !s.ConversationsStale() {
		t.Error("expected the conversation list to be marked stale")
	}
	fresh := load(t, c, "")
	if !reflect.DeepEqual(speakerMap(s.Snapshot().Speakers), speakerMap(fresh.Snapshot().Speakers)) {
		t.Errorf("speakers differ:\n got %+v\nwant %+v", s.Snapshot().Speakers, fresh.Snapshot().Speakers)
	}
}

func TestReassignToSameSpeakerIsNoop(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	alice := speaker(t, s, "Alice")
	res, err := ReassignAllInConversation(context.Background(), c, Bulk{
		ConversationID: conversationID(t, s, "Weekly sync"),
		FromID:         alice.ID,
		FromName:       alice.Name,
		Target:         Target{ID: alice.ID, Name: alice.Name},
	})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if res.Notice.Level != Info {
		t.Errorf("notice = %+v", res.Notice)
	}
	apply(t, s, res)
	assertMatchesServer(t, s, c)
}

func TestRenameSpeakerCascades(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	alice := speaker(t, s, "Alice")

	res, err := RenameSpeaker(context.Background(), c, alice.ID, "  Alice Smith ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	apply(t, s, res)
	for _, u := range s.Snapshot().OpenConversation.Utterances {
		if u.SpeakerID == alice.ID && u.SpeakerName != "Alice Smith" {
			t.Errorf("utterance %s still shows %q", u.ID, u.SpeakerName)
		}
	}
	assertMatchesServer(t, s, c)
}

func TestEditTextAndRenameConversation(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	ctx := context.Background()
	u := utteranceOf(t, s, "Bob")

	res, err := EditUtteranceText(ctx, c, u.ID, "The build is green.")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	apply(t, s, res)
	res, err = RenameConversation(ctx, c, conversationID(t, s, "Weekly sync"), " Release sync ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	apply(t, s, res)
	if h, _ := view.ConversationHeader(s.Snapshot()); h.Title != "Release sync" {
		t.Errorf("title = %q", h.Title)
	}
	assertMatchesServer(t, s, c)
}

func TestFailedActionReturnsNoPatch(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	before := s.Snapshot()

	res, err := RenameConversation(context.Background(), c, conversationID(t, s, "Weekly sync"), "   ")
	if !errors.Is(err, api.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	apply(t, s, res)
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Error("failed action changed the store")
	}
	n := FailureNotice("rename conversation", err)
	if n.Level != Failure || !strings.HasPrefix(n.Text, "Could not rename conversation: ") {
		t.Errorf("notice = %+v", n)
	}
}

func TestDeleteSpeakerMovesUtterancesToUnknown(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	bob := speaker(t, s, "Bob")

	res, err := DeleteSpeaker(context.Background(), c, bob)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	apply(t, s, res)
	if res.Notice.Text != "Speaker Bob deleted; 2 utterances moved to unknown_speaker." {
		t.Errorf("notice = %q", res.Notice.Text)
	}
	if _, ok := s.Speaker(bob.ID); ok {
		t.Error("Bob still loaded")
	}
	if unknown := speaker(t, s, api.UnknownSpeakerName); unknown.UtteranceCount != 2 {
		t.Errorf("unknown speaker = %+v", unknown)
	}
	assertMatchesServer(t, s, c)
}

func TestDeleteSpeakerReusesUnknown(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	ctx := context.Background()

	res, err := DeleteSpeaker(ctx, c, speaker(t, s, "Alice"))
	if err != nil {
		t.Fatalf("delete Alice: %v", err)
	}
	apply(t, s, res)
	unknown := speaker(t, s, api.UnknownSpeakerName)

	res, err = DeleteSpeaker(ctx, c, speaker(t, s, "Bob"))
	if err != nil {
		t.Fatalf("delete Bob: %v", err)
	}
	apply(t, s, res)
	again := speaker(t, s, api.UnknownSpeakerName)
	if again.ID != unknown.ID || again.UtteranceCount != 5 {
		t.Errorf("unknown speaker = %+v, want id %s with 5 utterances", again, unknown.ID)
	}
	fresh := load(t, c, "")
	if !reflect.DeepEqual(speakerMap(s.Snapshot().Speakers), speakerMap(fresh.Snapshot().Speakers)) {
		t.Errorf("speakers differ:\n got %+v\nwant %+v", s.Snapshot().Speakers, fresh.Snapshot().Speakers)
	}
}

func TestDeleteIdleSpeaker(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "")
	res, err := DeleteSpeaker(context.Background(), c, speaker(t, s, "Dana"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	apply(t, s, res)
	if _, ok := s.SpeakerByName(api.UnknownSpeakerName); ok {
		t.Error("unknown speaker created for an idle speaker")
	}
	assertMatchesServer(t, s, c)
}

func TestDeleteUnknownSpeakerInUse(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "")
	res, err := DeleteSpeaker(context.Background(), c, speaker(t, s, "Carol"))
	if err != nil {
		t.Fatal(err)
	}
	apply(t, s, res)

	_, err = DeleteSpeaker(context.Background(), c, speaker(t, s, api.UnknownSpeakerName))
	if !errors.Is(err, ErrUnknownSpeakerInUse) || !errors.Is(err, api.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

// failingDelete refuses the final delete so the earlier steps stand alone.
type failingDelete struct {
	*api.Client
}

func (failingDelete) DeleteSpeaker(context.Context, api.ID) (api.DeleteSpeakerResult, error) {
	return api.DeleteSpeakerResult{}, &api.Error{Kind: api.KindServerError, Op: "delete speaker", Status: 500, Message: "boom"}
}

func TestDeleteSpeakerPartialFailureKeepsConfirmedSteps(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	bob := speaker(t, s, "Bob")

	res, err := DeleteSpeaker(context.Background(), failingDelete{c}, bob)
	if !errors.Is(err, api.ErrServerError) {
		t.Fatalf("err = %v", err)
	}
	apply(t, s, res)
	if sp, ok := s.Speaker(bob.ID); !ok || sp.UtteranceCount != 0 {
		t.Errorf("Bob = %+v (loaded %v), want kept with no utterances", sp, ok)
	}
	assertMatchesServer(t, s, c)
}

func TestDeleteConversation(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")

	res, err := DeleteConversation(context.Background(), c, conversationID(t, s, "Weekly sync"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	apply(t, s, res)
	if _, ok := s.OpenConversationID(); ok {
		t.Error("deleted conversation still open")
	}
	assertMatchesServer(t, s, c)
}

func TestResolveUtterance(t *testing.T) {
	c := startBackend(t)
	s := load(t, c, "Weekly sync")
	rows := view.UtteranceRows(s.Snapshot())
	u := utteranceOf(t, s, "Bob")

	rec, ok := ResolveUtterance(s, rows, u.ID)
	if !ok || rec.Provenance != view.ProvenanceServer || !reflect.DeepEqual(rec.Utterance, u) {
		t.Errorf("store lookup = %+v, %v", rec, ok)
	}

	s.CloseConversation()
	rec, ok = ResolveUtterance(s, rows, u.ID)
	if !ok || rec.Provenance != view.ProvenanceRendered {
		t.Fatalf("fallback = %+v, %v", rec, ok)
	}
	if rec.Utterance.SpeakerID != u.SpeakerID || rec.Utterance.Text != u.Text {
		t.Errorf("recovered = %+v", rec.Utterance)
	}
}

func TestFailureNoticeNamesTimeout(t *testing.T) {
	n := FailureNotice("load conversation", &api.Error{Kind: api.KindTimeout, Message: "deadline exceeded"})
	if n.Text != "Could not load conversation: deadline exceeded (request timed out)" {
		t.Errorf("text = %q", n.Text)
	}
}
