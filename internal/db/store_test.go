package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

// openTestStore opens an in-memory store with the schema applied.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createConversation(t *testing.T, store *Store, nc NewConversation) int64 {
	t.Helper()
	id, err := store.CreateConversation(context.Background(), nc)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return id
}

func TestCreateAndReadConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	processed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	id := createConversation(t, store, NewConversation{
		ConversationID:  "conv-uuid",
		DisplayName:     "Standup",
		ProcessedAt:     processed,
		DurationSeconds: 12.5,
		Utterances: []NewUtterance{
			{SpeakerName: "Alice", StartMs: 2000, EndMs: 3000, Text: "second"},
			{SpeakerName: "Alice", StartMs: 0, EndMs: 1500, Text: "first"},
			{SpeakerName: "Bob", StartMs: 3000, EndMs: 4000},
			{StartMs: 4000, EndMs: 5000, Text: "unassigned"},
		},
	})

	conv, err := store.Conversation(ctx, id)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if conv == nil {
		t.Fatal("expected conversation")
	}
	if conv.DisplayName == nil || *conv.DisplayName != "Standup" {
		t.Errorf("display name = %v", conv.DisplayName)
	}
	if conv.SpeakerCount != 2 {
		t.Errorf("speaker count = %d, want 2", conv.SpeakerCount)
	}
	if conv.ProcessedAt == nil || !conv.ProcessedAt.Equal(processed) {
		t.Errorf("processed at = %v", conv.ProcessedAt)
	}

	utts, err := store.UtterancesForConversation(ctx, id)
	if err != nil {
		t.Fatalf("utterances: %v", err)
	}
	if len(utts) != 4 {
		t.Fatalf("utterances = %d, want 4", len(utts))
	}
	if utts[0].Text == nil || *utts[0].Text != "first" {
		t.Errorf("first utterance = %+v", utts[0])
	}
	if utts[0].StartTime == nil || *utts[0].StartTime != "00:00:00.000" || *utts[0].EndTime != "00:00:01.500" {
		t.Errorf("offsets = %v %v", utts[0].StartTime, utts[0].EndTime)
	}
	if utts[3].SpeakerID != nil || utts[3].SpeakerName != nil {
		t.Errorf("unassigned utterance = %+v", utts[3])
	}

	missing, err := store.Conversation(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("missing conversation = %v, %v", missing, err)
	}
}

func TestConversationsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	old := createConversation(t, store, NewConversation{ConversationID: "a", ProcessedAt: time.Unix(1000, 0)})
	recent := createConversation(t, store, NewConversation{ConversationID: "b", ProcessedAt: time.Unix(2000, 0)})

	convs, err := store.Conversations(context.Background())
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != recent || convs[1].ID != old {
		t.Errorf("order = %+v", convs)
	}
	if convs[0].DisplayName != nil {
		t.Error("blank display name should be NULL")
	}
}

func TestSpeakerStatistics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createConversation(t, store, NewConversation{ConversationID: "a", Utterances: []NewUtterance{
		{SpeakerName: "Alice", StartMs: 0, EndMs: 1500},
		{SpeakerName: "Alice", StartMs: 1500, EndMs: 2000},
		{SpeakerName: "Bob", StartMs: 2000, EndMs: 2250},
	}})
	if _, _, err := store.CreateSpeaker(ctx, "Carol"); err != nil {
		t.Fatal(err)
	}

	speakers, err := store.Speakers(ctx)
	if err != nil {
		t.Fatalf("Speakers: %v", err)
	}
	if len(speakers) != 3 {
		t.Fatalf("speakers = %d", len(speakers))
	}
	alice := speakers[0]
	if alice.Name != "Alice" || alice.UtteranceCount != 2 || alice.TotalDurationMs != 2000 {
		t.Errorf("alice = %+v", alice)
	}
	if carol := speakers[2]; carol.UtteranceCount != 0 || carol.TotalDurationMs != 0 {
		t.Errorf("carol = %+v", carol)
	}
}

func TestCreateSpeakerDuplicateReturnsExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first, created, err := store.CreateSpeaker(ctx, "Dana")
	if err != nil || !created {
		t.Fatalf("first create = %v, %v", created, err)
	}
	again, created, err := store.CreateSpeaker(ctx, "Dana")
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != first.ID {
		t.Errorf("duplicate create = %+v created=%v", again, created)
	}
}

func TestDeleteSpeakerInUse(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createConversation(t, store, NewConversation{ConversationID: "a", Utterances: []NewUtterance{{SpeakerName: "Alice", EndMs: 100}}})
	alice, _ := store.SpeakerByName(ctx, "Alice")
	unknown, _, _ := store.CreateSpeaker(ctx, "unknown_speaker")

	if _, err := store.DeleteSpeaker(ctx, alice.ID); !errors.Is(err, ErrSpeakerInUse) {
		t.Fatalf("delete in use err = %v", err)
	}
	n, err := store.ReassignUtterances(ctx, alice.ID, unknown.ID, nil)
	if err != nil || n != 1 {
		t.Fatalf("reassign = %d, %v", n, err)
	}
	deleted, err := store.DeleteSpeaker(ctx, alice.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Name != "Alice" {
		t.Errorf("deleted = %+v", deleted)
	}
	if _, err := store.DeleteSpeaker(ctx, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestReassignScopedToConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	a := createConversation(t, store, NewConversation{ConversationID: "a", Utterances: []NewUtterance{
		{SpeakerName: "Alice", EndMs: 100}, {SpeakerName: "Alice", StartMs: 100, EndMs: 200},
	}})
	createConversation(t, store, NewConversation{ConversationID: "b", Utterances: []NewUtterance{{SpeakerName: "Alice", EndMs: 100}}})
	alice, _ := store.SpeakerByName(ctx, "Alice")
	bob, _, _ := store.CreateSpeaker(ctx, "Bob")

	n, err := store.ReassignUtterances(ctx, alice.ID, bob.ID, &a)
	if err != nil || n != 2 {
		t.Fatalf("reassign = %d, %v", n, err)
	}
	alice, _ = store.Speaker(ctx, alice.ID)
	if alice.UtteranceCount != 1 {
		t.Errorf("alice keeps %d utterances, want 1", alice.UtteranceCount)
	}
}

func TestUpdateUtteranceAndDeleteConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id := createConversation(t, store, NewConversation{ConversationID: "a", Utterances: []NewUtterance{{SpeakerName: "Alice", EndMs: 100, Text: "hello"}}})
	utts, _ := store.UtterancesForConversation(ctx, id)
	bob, _, _ := store.CreateSpeaker(ctx, "Bob")

	text := "hello there"
	if err := store.UpdateUtterance(ctx, utts[0].ID, &bob.ID, &text); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, _ := store.Utterance(ctx, utts[0].ID)
	if *u.SpeakerName != "Bob" || *u.Text != "hello there" {
		t.Errorf("utterance = %+v", u)
	}
	if err := store.UpdateUtterance(ctx, 999, nil, &text); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing utterance err = %v", err)
	}

	if err := store.DeleteConversation(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if u, _ := store.Utterance(ctx, utts[0].ID); u != nil {
		t.Error("utterances survived conversation delete")
	}
	if err := store.DeleteConversation(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestEmbeddings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, e := range []Embedding{{ID: "b1", SpeakerName: "Bob"}, {ID: "a1", SpeakerName: "alice"}, {ID: "a2", SpeakerName: "alice"}} {
		if err := store.AddEmbedding(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.Embeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].SpeakerName != "alice" {
		t.Errorf("embeddings = %+v", all)
	}
	e, err := store.DeleteEmbedding(ctx, "b1")
	if err != nil || e.SpeakerName != "Bob" {
		t.Errorf("delete = %+v, %v", e, err)
	}
	n, err := store.DeleteEmbeddingsForSpeaker(ctx, "alice")
	if err != nil || n != 2 {
		t.Errorf("delete for speaker = %d, %v", n, err)
	}
	if _, err := store.DeleteEmbedding(ctx, "b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing embedding err = %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Seed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	convs, _ := store.Conversations(ctx)
	if len(convs) != 2 {
		t.Errorf("conversations = %d, want 2", len(convs))
	}
}

func TestFormatOffset(t *testing.T) {
	if got := formatOffset(3_723_045); got != "01:02:03.045" {
		t.Errorf("formatOffset = %q", got)
	}
}
