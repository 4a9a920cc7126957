package db

import (
	"context"
	"os"
	"testing"
)

// TestLiveDatabase opens the local fixture database and lists its contents.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	convs, err := store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	t.Logf("%d conversations", len(convs))
	for _, c := range convs {
		utts, err := store.UtterancesForConversation(ctx, c.ID)
		if err != nil {
			t.Fatalf("UtterancesForConversation(%d): %v", c.ID, err)
		}
		t.Logf("  %s: %d utterances, %d speakers", c.ConversationID, len(utts), c.SpeakerCount)
	}

	speakers, err := store.Speakers(ctx)
	if err != nil {
		t.Fatalf("Speakers: %v", err)
	}
	t.Logf("%d speakers", len(speakers))
}
