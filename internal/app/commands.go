package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/upload"
	"github.com/jwulff/speakerdash/internal/view"
)

// noticeTTL is how long a notice stays on screen.
const noticeTTL = 5 * time.Second

// loadConversationsCmd fetches the conversation list.
func loadConversationsCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		convs, err := c.ListConversations(ctx)
		return ConversationsLoadedMsg{Conversations: convs, Err: err}
	}
}

// loadSpeakersCmd fetches the speaker list.
func loadSpeakersCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		speakers, err := c.ListSpeakers(ctx)
		return SpeakersLoadedMsg{Speakers: speakers, Err: err}
	}
}

// openConversationCmd fetches one conversation with its utterances.
func openConversationCmd(ctx context.Context, c *api.Client, id api.ID) tea.Cmd {
	return func() tea.Msg {
		conv, err := c.GetConversation(ctx, id)
		return ConversationLoadedMsg{ID: id, Conversation: conv, Err: err}
	}
}

// speakerCountsCmd fetches every conversation and counts, per speaker, the
// conversations it appears in.
func speakerCountsCmd(ctx context.Context, c *api.Client, ids []api.ID) tea.Cmd {
	return func() tea.Msg {
		convs, err := state.FetchConversationDetails(ctx, c, ids, state.DefaultDetailConcurrency)
		if err != nil {
			return SpeakerCountsMsg{Err: err}
		}
		return SpeakerCountsMsg{Counts: view.SpeakerConversationCounts(convs)}
	}
}

// loadEmbeddingsCmd fetches the enrolled voice embeddings.
func loadEmbeddingsCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		speakers, err := c.ListEmbeddingSpeakers(ctx)
		return EmbeddingsLoadedMsg{Speakers: speakers, Err: err}
	}
}

// actionCmd runs a user edit off the update loop.
func actionCmd(ctx context.Context, label string, run func(context.Context) (actions.Result, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := run(ctx)
		return ActionDoneMsg{Label: label, Result: res, Err: err}
	}
}

// deleteEmbeddingsCmd removes every embedding of one speaker name.
func deleteEmbeddingsCmd(ctx context.Context, c *api.Client, speakerName string) tea.Cmd {
	return func() tea.Msg {
		res, err := c.DeleteEmbeddingSpeaker(ctx, speakerName)
		msg := ActionDoneMsg{Label: "delete embeddings", Err: err, ReloadEmbeddings: err == nil}
		if err == nil {
			msg.Result.Notice = actions.Notice{
				Level: actions.Success,
				Text:  fmt.Sprintf("Deleted %d embeddings of %s.", res.Deleted, speakerName),
			}
		}
		return msg
	}
}

// uploadParams are the user's choices for one upload.
type uploadParams struct {
	Path                string
	DisplayName         string
	MatchThreshold      float64
	AutoUpdateThreshold float64
}

// startUploadCmd opens the file and issues the upload.
func startUploadCmd(ctx context.Context, ctrl *upload.Controller, p uploadParams) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(p.Path)
		if err != nil {
			return UploadStartedMsg{Err: fmt.Errorf("open %s: %w", p.Path, err)}
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return UploadStartedMsg{Err: fmt.Errorf("stat %s: %w", p.Path, err)}
		}
		if info.IsDir() {
			f.Close()
			return UploadStartedMsg{Err: fmt.Errorf("%s is a directory", p.Path)}
		}
		sess, events := ctrl.Start(ctx, api.UploadRequest{
			FileName:            filepath.Base(p.Path),
			File:                f,
			Size:                info.Size(),
			DisplayName:         p.DisplayName,
			MatchThreshold:      p.MatchThreshold,
			AutoUpdateThreshold: p.AutoUpdateThreshold,
		})
		return UploadStartedMsg{Session: sess, Events: events, File: f}
	}
}

// waitUploadCmd waits for the next report of an in-flight upload.
func waitUploadCmd(sessionID string, events <-chan upload.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return UploadEventMsg{SessionID: sessionID, Event: ev, Closed: !ok}
	}
}

// uploadTickCmd schedules the next progress tick.
func uploadTickCmd(sessionID string, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return UploadTickMsg{SessionID: sessionID, At: t}
	})
}

// clearNoticeCmd fires after a delay to clear a notice.
func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return ClearNoticeMsg{Seq: seq}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}
