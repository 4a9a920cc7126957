package db

import (
	"context"
	"fmt"
	"time"
)

// Seed fills an empty database with a small demo data set. It is a no-op
// when any conversation exists.
func (s *Store) Seed(ctx context.Context) error {
	convs, err := s.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) > 0 {
		return nil
	}

	base := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	demo := []NewConversation{
		{
			ConversationID:  "3f0c2a9e-5b7d-4c1e-9a2f-6d8b1e4c7a01",
			DisplayName:     "Weekly sync",
			ProcessedAt:     base,
			DurationSeconds: 42,
			Utterances: []NewUtterance{
				{SpeakerName: "Alice", StartMs: 0, EndMs: 6000, Text: "Morning everyone, let's start with the release."},
				{SpeakerName: "Bob", StartMs: 6000, EndMs: 14500, Text: "The build is green, we are waiting on one review."},
				{SpeakerName: "Alice", StartMs: 14500, EndMs: 21000, Text: "Good. Any blockers on the migration?"},
				{SpeakerName: "SPEAKER_02", StartMs: 21000, EndMs: 30000, Text: "Only the backfill, it should finish tonight."},
				{SpeakerName: "Bob", StartMs: 30000, EndMs: 42000, Text: ""},
			},
		},
		{
			ConversationID:  "9a41d6b2-0e3f-4f8a-b5c7-2d1e8f6a9b02",
			ProcessedAt:     base.Add(26 * time.Hour),
			DurationSeconds: 3725,
			Utterances: []NewUtterance{
				{SpeakerName: "Carol", StartMs: 0, EndMs: 1_800_000, Text: "Welcome to the interview."},
				{SpeakerName: "Alice", StartMs: 1_800_000, EndMs: 3_725_000, Text: "Thanks for having me."},
			},
		},
	}
	for _, nc := range demo {
		if _, err := s.CreateConversation(ctx, nc); err != nil {
			return fmt.Errorf("seed %s: %w", nc.ConversationID, err)
		}
	}
	if _, _, err := s.CreateSpeaker(ctx, "Dana"); err != nil {
		return fmt.Errorf("seed speaker: %w", err)
	}
	for _, e := range []Embedding{
		{ID: "alice-1", SpeakerName: "Alice", SourceFile: "alice_intro.wav", CreatedAt: base},
		{ID: "alice-2", SpeakerName: "Alice", SourceFile: "weekly_sync.wav", CreatedAt: base.Add(time.Hour)},
		{ID: "bob-1", SpeakerName: "Bob", SourceFile: "bob_intro.wav", CreatedAt: base},
	} {
		if err := s.AddEmbedding(ctx, e); err != nil {
			return fmt.Errorf("seed embedding: %w", err)
		}
	}
	return nil
}
