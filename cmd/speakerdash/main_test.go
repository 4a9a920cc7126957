package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/fixture"
)

type cliTestEnv struct {
	apiURL     string
	configPath string
	client     *api.Client
}

// setupCLITestEnv serves the seeded fixture and isolates HOME.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	srv, closeStore, err := fixture.NewSeeded(context.Background())
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		closeStore()
	})

	return &cliTestEnv{
		apiURL:     ts.URL,
		configPath: filepath.Join(base, "missing.toml"),
		client:     api.New(ts.URL),
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api-url", env.apiURL, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

// utteranceID returns the id of the index-th utterance of the named
// conversation.
func utteranceID(t *testing.T, env *cliTestEnv, name string, index int) string {
	t.Helper()
	ctx := context.Background()
	convs, err := env.client.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, c := range convs {
		if c.DisplayName != name {
			continue
		}
		conv, err := env.client.GetConversation(ctx, c.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		return conv.Utterances[index].ID.String()
	}
	t.Fatalf("conversation %q not found", name)
	return ""
}

func TestConversationsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "conversations", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Weekly sync")

	out, _, err = runCLI(t, env, "conversations", "show", "weekly sync")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "SPEAKER_02")
	requireContains(t, out, "(no transcription)")
	requireContains(t, out, "5 utterances")
}

func TestConversationsShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "conversations", "show", "Retro")
	if err == nil || !strings.Contains(err.Error(), `conversation "Retro" not found`) {
		t.Fatalf("err = %v", err)
	}
}

func TestConversationsRenameAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "conversations", "rename", "Weekly sync", "Standup")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	requireContains(t, out, `Conversation renamed to "Standup".`)

	if _, _, err := runCLI(t, env, "conversations", "delete", "Standup"); err == nil {
		t.Fatal("delete without --yes succeeded")
	}

	out, _, err = runCLI(t, env, "conversations", "delete", "Standup", "--yes")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Conversation deleted.")

	convs, err := env.client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
}

func TestSpeakersListWithConversations(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "speakers", "list", "--conversations")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Alice")
	requireContains(t, out, "Dana")
}

func TestSpeakersReassignWithinConversation(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env, "speakers", "reassign", "Bob", "Carol"); err == nil {
		t.Fatal("reassign without --conversation succeeded")
	}

	out, _, err := runCLI(t, env, "speakers", "reassign", "Bob", "Carol", "--conversation", "Weekly sync")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	requireContains(t, out, "Reassigned 2 utterances from Bob to Carol.")
}

func TestSpeakersCreateRenameDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "speakers", "create", "Erin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	requireContains(t, out, `Speaker "Erin" ready.`)

	out, _, err = runCLI(t, env, "speakers", "rename", "Erin", "Erin B")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	requireContains(t, out, `Speaker renamed to "Erin B".`)

	_, _, err = runCLI(t, env, "speakers", "delete", "Dana")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("delete without --yes: %v", err)
	}

	out, _, err = runCLI(t, env, "speakers", "delete", "Dana", "--yes")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Speaker Dana deleted.")
}

func TestSpeakersDeleteMovesUtterances(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "speakers", "delete", "Bob", "-y")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "2 utterances moved to unknown_speaker")
}

func TestUtterancesAssignAndEdit(t *testing.T) {
	env := setupCLITestEnv(t)
	id := utteranceID(t, env, "Weekly sync", 3)

	out, _, err := runCLI(t, env, "utterances", "assign", "Weekly sync", id, "Erin")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	requireContains(t, out, "Utterance assigned to Erin.")

	out, _, err = runCLI(t, env, "utterances", "edit", "Weekly sync", id, "Backfill finishes tonight.")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	requireContains(t, out, "Utterance text updated.")

	out, _, err = runCLI(t, env, "conversations", "show", "Weekly sync")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Erin")
	requireContains(t, out, "Backfill finishes tonight.")

	if _, _, err := runCLI(t, env, "utterances", "edit", "Weekly sync", "999", "x"); err == nil {
		t.Fatal("edit of unknown utterance succeeded")
	}
}

func TestUploadCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "standup.wav")
	if err := os.WriteFile(path, []byte("RIFF0000WAVEfmt "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, _, err := runCLI(t, env, "upload", path, "--name", "Standup")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireContains(t, out, "Uploading standup.wav")
	requireContains(t, out, "Done: Conversation processed successfully")
	requireContains(t, out, "is ready.")

	out, _, err = runCLI(t, env, "conversations", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Standup")
}

func TestUploadRejectedType(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := runCLI(t, env, "upload", path)
	if err == nil || !strings.Contains(err.Error(), "Unsupported file type") {
		t.Fatalf("err = %v", err)
	}
}

func TestAudioCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	id := utteranceID(t, env, "Weekly sync", 0)
	target := filepath.Join(t.TempDir(), "clip.wav")

	out, _, err := runCLI(t, env, "audio", "Weekly sync", id, "-o", target)
	if err != nil {
		t.Fatalf("audio: %v", err)
	}
	requireContains(t, out, "Wrote "+target)

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("clip does not look like wav: %q", data[:min(len(data), 8)])
	}
}

func TestEmbeddingsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "embeddings", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "alice-1")
	requireContains(t, out, "bob-1")

	out, _, err = runCLI(t, env, "embeddings", "delete", "--id", "bob-1")
	if err != nil {
		t.Fatalf("delete id: %v", err)
	}
	requireContains(t, out, "Deleted embedding bob-1 of Bob.")

	out, _, err = runCLI(t, env, "embeddings", "delete", "Alice")
	if err != nil {
		t.Fatalf("delete speaker: %v", err)
	}
	requireContains(t, out, "Deleted 2 embeddings of Alice.")

	if _, _, err := runCLI(t, env, "embeddings", "delete"); err == nil {
		t.Fatal("delete without target succeeded")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "Config file did not exist")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("init over existing file succeeded")
	}
}

func TestUnreachableBackendReportsKind(t *testing.T) {
	env := setupCLITestEnv(t)
	env.apiURL = "http://127.0.0.1:1"

	_, _, err := runCLI(t, env, "speakers", "list")
	if err == nil || !strings.Contains(err.Error(), "network failure") {
		t.Fatalf("err = %v", err)
	}
}
