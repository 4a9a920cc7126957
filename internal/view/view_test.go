package view

import (
	"reflect"
	"testing"
	"time"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/upload"
)

func testSnapshot() state.Snapshot {
	open := api.Conversation{
		ID:              "c1",
		ConversationID:  "0f6c2a9e-5b1d-4c3e-9a7f-2d8e4b6c1a90",
		DisplayName:     "Weekly sync",
		CreatedAt:       "2024-03-04T09:30:00",
		DurationSeconds: 42,
		SpeakerCount:    2,
		Utterances: []api.Utterance{
			{ID: "u1", ConversationID: "c1", SpeakerID: "2", SpeakerName: "Bob", Text: "Morning.", StartMs: 0, EndMs: 6000, AudioURL: "/api/audio/c1/u1"},
			{ID: "u2", ConversationID: "c1", Text: "Who is this?", StartMs: 6000, EndMs: 9000},
			{ID: "u3", ConversationID: "c1", SpeakerID: "1", SpeakerName: "Alice", Text: "  ", StartMs: 9000, EndMs: 21000},
			{ID: "u4", ConversationID: "c1", SpeakerID: "2", SpeakerName: "Bob", Text: "Right.", StartMs: 21000, EndMs: 42000},
		},
	}
	alice := api.Speaker{ID: "1", Name: "Alice", UtteranceCount: 3, TotalDurationSeconds: 90}
	return state.Snapshot{
		Conversations: []api.Conversation{
			{ID: "c1", ConversationID: open.ConversationID, DisplayName: "Weekly sync", CreatedAt: open.CreatedAt, DurationSeconds: 42, SpeakerCount: 2},
			{ID: "c2", ConversationID: "8b1e6f3d-2c4a-4e9b-b7d1-5a3c9e0f7d21", DurationSeconds: 3725, SpeakerCount: 1},
		},
		Speakers: []api.Speaker{
			alice,
			{ID: "2", Name: "Bob", UtteranceCount: 2, TotalDurationSeconds: 27},
			{ID: "3", Name: "carol", UtteranceCount: 0},
			{ID: "9", Name: api.UnknownSpeakerName, UtteranceCount: 4, TotalDurationSeconds: 12},
		},
		OpenConversation: &open,
		OpenSpeaker:      &alice,
	}
}

func TestConversationRows(t *testing.T) {
	rows := ConversationRows(testSnapshot())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Title != "Weekly sync" || rows[0].Duration != "0:42" || rows[0].Speakers != 2 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Title != "Conversation 5a3c9e0f7d21" {
		t.Errorf("unnamed title = %q", rows[1].Title)
	}
	if rows[1].Duration != "1:02:05" {
		t.Errorf("duration = %q, want 1:02:05", rows[1].Duration)
	}
	if rows[1].Date != "N/A" {
		t.Errorf("missing date = %q, want N/A", rows[1].Date)
	}
}

func TestUtteranceRows(t *testing.T) {
	rows := UtteranceRows(testSnapshot())
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Speaker != "Bob" || rows[0].Start != "00:00:00" || rows[0].End != "00:00:06" || rows[0].Duration != "0:06" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Speaker != UnassignedLabel {
		t.Errorf("unassigned speaker = %q", rows[1].Speaker)
	}
	if !rows[2].NoText || rows[2].Text != EmptyTextLabel {
		t.Errorf("blank text row = %+v", rows[2])
	}
	if UtteranceRows(state.Snapshot{}) != nil {
		t.Error("expected nil rows without an open conversation")
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	snap := testSnapshot()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	sess := upload.NewSession("meeting.wav", 2<<20, upload.Options{Reveal: 0})
	_ = sess.Begin(now)

	renders := []func() any{
		func() any { return ConversationRows(snap) },
		func() any { return SpeakerRows(snap, map[api.ID]int{"1": 2}) },
		func() any { return UtteranceRows(snap) },
		func() any { h, _ := ConversationHeader(snap); return h },
		func() any { d, _ := SpeakerDetail(snap, nil); return d },
		func() any { return ConversationSpeakers(snap) },
		func() any { return SpeakerPicker(snap, "1", "") },
		func() any { p, _ := DeleteSpeakerPrompt(snap, "2"); return p },
		func() any { return UploadPanel(sess, now.Add(time.Minute)) },
	}
	for i, render := range renders {
		first, second := render(), render()
		if !reflect.DeepEqual(first, second) {
			t.Errorf("render %d differs between calls:\n%+v\n%+v", i, first, second)
		}
	}
	if !reflect.DeepEqual(snap, testSnapshot()) {
		t.Error("rendering mutated the snapshot")
	}
}

func TestConversationHeaderAndSpeakerDetail(t *testing.T) {
	snap := testSnapshot()
	h, ok := ConversationHeader(snap)
	if !ok {
		t.Fatal("expected a header")
	}
	if h.Title != "Weekly sync" || h.Utterances != 4 || h.ShortID != "2d8e4b6c1a90" {
		t.Errorf("unexpected header: %+v", h)
	}
	card, ok := SpeakerDetail(snap, map[api.ID]int{"1": 2})
	if !ok {
		t.Fatal("expected a speaker card")
	}
	if card.Name != "Alice" || card.Duration != "1:30" || card.Average != "0:30" || card.Conversations != 2 {
		t.Errorf("unexpected card: %+v", card)
	}
	if _, ok := ConversationHeader(state.Snapshot{}); ok {
		t.Error("expected no header without an open conversation")
	}
	if _, ok := SpeakerDetail(state.Snapshot{}, nil); ok {
		t.Error("expected no card without an open speaker")
	}
}

func TestSpeakerRows(t *testing.T) {
	rows := SpeakerRows(testSnapshot(), map[api.ID]int{"1": 2, "2": 1})
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Conversations != 2 || rows[0].Duration != "1:30" {
		t.Errorf("unexpected Alice row: %+v", rows[0])
	}
	if rows[2].Conversations != 0 {
		t.Errorf("carol conversations = %d", rows[2].Conversations)
	}
	if !rows[3].Unknown {
		t.Error("expected the unknown speaker to be flagged")
	}
}

func TestConversationSpeakers(t *testing.T) {
	got := ConversationSpeakers(testSnapshot())
	want := []ConversationSpeaker{
		{ID: "2", Name: "Bob", Utterances: 2, Duration: "0:27"},
		{ID: "1", Name: "Alice", Utterances: 1, Duration: "0:12"},
		{Name: UnassignedLabel, Utterances: 1, Duration: "0:03"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestSpeakerPicker(t *testing.T) {
	snap := testSnapshot()
	all := SpeakerPicker(snap, "2", "")
	names := make([]string, len(all))
	for i, o := range all {
		names[i] = o.Name
	}
	if !reflect.DeepEqual(names, []string{"Alice", "Bob", "carol", api.UnknownSpeakerName}) {
		t.Errorf("order = %v", names)
	}
	if !all[1].Current || all[0].Current {
		t.Errorf("current flag wrong: %+v", all)
	}
	filtered := SpeakerPicker(snap, "", " CAR ")
	if len(filtered) != 1 || filtered[0].ID != "3" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestDeleteSpeakerPrompt(t *testing.T) {
	snap := testSnapshot()
	p, ok := DeleteSpeakerPrompt(snap, "2")
	if !ok {
		t.Fatal("expected a prompt")
	}
	if p.Blocked || p.Message != "Delete Bob? 2 utterances will be moved to unknown_speaker." {
		t.Errorf("unexpected prompt: %+v", p)
	}
	p, _ = DeleteSpeakerPrompt(snap, "3")
	if p.Message != "Delete carol?" {
		t.Errorf("empty speaker message = %q", p.Message)
	}
	p, _ = DeleteSpeakerPrompt(snap, "9")
	if !p.Blocked {
		t.Error("expected deleting the unknown speaker with utterances to be blocked")
	}
	if _, ok := DeleteSpeakerPrompt(snap, "404"); ok {
		t.Error("expected no prompt for an unknown id")
	}
}

func TestSpeakerConversationCounts(t *testing.T) {
	convs := []api.Conversation{
		{ID: "c1", Utterances: []api.Utterance{{SpeakerID: "1"}, {SpeakerID: "1"}, {SpeakerID: "2"}, {}}},
		{ID: "c2", Utterances: []api.Utterance{{SpeakerID: "1"}}},
		{ID: "c3"},
	}
	got := SpeakerConversationCounts(convs)
	want := map[api.ID]int{"1": 2, "2": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEmbeddingRows(t *testing.T) {
	rows := EmbeddingRows([]api.EmbeddingSpeaker{
		{Name: "bob", Embeddings: []api.Embedding{{ID: "bob-1"}}},
		{Name: "Alice", Embeddings: []api.Embedding{{ID: "alice-1"}, {ID: "alice-2"}}},
	})
	if len(rows) != 2 || rows[0].Speaker != "Alice" || rows[0].Count != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !reflect.DeepEqual(rows[1].Embeddings, []string{"bob-1"}) {
		t.Errorf("bob embeddings = %v", rows[1].Embeddings)
	}
}

func stepStates(st UploadStatus) []StepState {
	out := make([]StepState, len(st.Steps))
	for i, s := range st.Steps {
		out[i] = s.State
	}
	return out
}

func TestUploadPanel(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	idle := UploadPanel(nil, start)
	if !reflect.DeepEqual(stepStates(idle), []StepState{StepPending, StepPending, StepPending, StepPending}) {
		t.Errorf("idle steps = %v", stepStates(idle))
	}

	sess := upload.NewSession("meeting.wav", 2_000_000, upload.Options{Reveal: 0})
	if err := sess.Begin(start); err != nil {
		t.Fatal(err)
	}
	sess.Sent(start.Add(10 * time.Second))
	st := UploadPanel(sess, start.Add(65*time.Second))
	if st.Stage != "transcribing" || st.Elapsed != "1m 05s" || st.Size != "2.0 MB" {
		t.Errorf("unexpected status: %+v", st)
	}
	if !reflect.DeepEqual(stepStates(st), []StepState{StepDone, StepActive, StepPending, StepPending}) {
		t.Errorf("transcribing steps = %v", stepStates(st))
	}

	failed := upload.NewSession("meeting.wav", 10, upload.Options{Reveal: 0})
	_ = failed.Begin(start)
	failed.Sent(start)
	_ = failed.Fail(&api.Error{Kind: api.KindTimeout, Message: "request timed out"}, start.Add(time.Minute))
	st = UploadPanel(failed, start.Add(time.Hour))
	if !st.Failed || !st.Finished || st.Elapsed != "1m 00s" {
		t.Errorf("unexpected failed status: %+v", st)
	}
	if !reflect.DeepEqual(stepStates(st), []StepState{StepDone, StepFailed, StepPending, StepPending}) {
		t.Errorf("failed steps = %v", stepStates(st))
	}

	done := upload.NewSession("meeting.wav", 10, upload.Options{Reveal: 0})
	_ = done.Begin(start)
	done.Sent(start)
	_ = done.Complete(api.UploadResult{ConversationID: "abc"}, start.Add(time.Minute))
	st = UploadPanel(done, start.Add(time.Minute))
	if st.ConversationID != "abc" || !st.Finished || st.Failed {
		t.Errorf("unexpected done status: %+v", st)
	}
	if !reflect.DeepEqual(stepStates(st), []StepState{StepDone, StepDone, StepDone, StepDone}) {
		t.Errorf("done steps = %v", stepStates(st))
	}
}

func TestRecoverUtterance(t *testing.T) {
	rows := UtteranceRows(testSnapshot())
	rec, ok := RecoverUtterance(rows, "u1")
	if !ok {
		t.Fatal("expected u1 to be recovered")
	}
	if rec.Provenance != ProvenanceRendered || rec.Provenance.String() != "rendered" {
		t.Errorf("provenance = %v", rec.Provenance)
	}
	u := rec.Utterance
	if u.SpeakerID != "2" || u.SpeakerName != "Bob" || u.Text != "Morning." || u.StartMs != 0 || u.EndMs != 6000 || u.AudioURL != "/api/audio/c1/u1" {
		t.Errorf("unexpected recovered utterance: %+v", u)
	}

	rec, _ = RecoverUtterance(rows, "u2")
	if rec.Utterance.SpeakerName != "" {
		t.Errorf("unassigned label leaked into the name: %q", rec.Utterance.SpeakerName)
	}
	rec, _ = RecoverUtterance(rows, "u3")
	if rec.Utterance.Text != "" {
		t.Errorf("placeholder leaked into the text: %q", rec.Utterance.Text)
	}
	if _, ok := RecoverUtterance(rows, "missing"); ok {
		t.Error("expected no recovery for a missing id")
	}
}
