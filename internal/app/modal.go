package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/view"
)

type modalKind int

const (
	modalRenameConversation modalKind = iota
	modalDeleteConversation
	modalNewSpeaker
	modalRenameSpeaker
	modalDeleteSpeaker
	modalAssignSpeaker
	modalReassignAll
	modalEditText
	modalUploadPath
	modalDeleteEmbeddings
)

// modal is the dialog currently capturing keys.
type modal struct {
	kind  modalKind
	title string
	input lineInput

	// picker state
	cursor int

	conversationID api.ID
	utteranceID    api.ID
	speaker        api.Speaker
	// fromName is the speaker name captured when a bulk edit starts.
	fromName    string
	currentID   api.ID
	prompt      view.DeletePrompt
	provenance  view.Provenance
	embeddingOf string
}

func (md *modal) isPicker() bool {
	return md.kind == modalAssignSpeaker || md.kind == modalReassignAll
}

func (md *modal) isConfirm() bool {
	return md.kind == modalDeleteConversation || md.kind == modalDeleteSpeaker || md.kind == modalDeleteEmbeddings
}

// pickerOption is one row of the speaker picker. A zero ID with a name
// creates that speaker.
type pickerOption struct {
	view.PickerOption
	create bool
}

// pickerOptions lists the matching speakers plus a "new speaker" entry when
// the typed name matches none exactly.
func (m Model) pickerOptions(md *modal) []pickerOption {
	typed := md.input.Value()
	var out []pickerOption
	exact := false
	for _, o := range view.SpeakerPicker(m.store.Snapshot(), md.currentID, typed) {
		if strings.EqualFold(o.Name, typed) {
			exact = true
		}
		out = append(out, pickerOption{PickerOption: o})
	}
	if typed != "" && !exact {
		out = append(out, pickerOption{PickerOption: view.PickerOption{Name: typed}, create: true})
	}
	return out
}

// handleModalKey routes keys to the open modal.
func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	md := m.modal
	switch msg.String() {
	case KeyEsc:
		m.modal = nil
		return m, nil
	case KeyEnter:
		return m.submitModal()
	}

	if md.isConfirm() {
		switch msg.String() {
		case "y", "Y":
			return m.submitModal()
		case "n", "N":
			m.modal = nil
		}
		return m, nil
	}

	if md.isPicker() {
		switch msg.String() {
		case KeyUp, "ctrl+p":
			if md.cursor > 0 {
				md.cursor--
			}
			return m, nil
		case KeyDown, "ctrl+n":
			if md.cursor < len(m.pickerOptions(md))-1 {
				md.cursor++
			}
			return m, nil
		}
	}

	if md.input.handle(msg) && md.isPicker() {
		md.cursor = 0
	}
	return m, nil
}

// submitModal turns the modal into an action and closes it.
func (m Model) submitModal() (tea.Model, tea.Cmd) {
	md := m.modal
	ctx := m.ctx
	c := m.client
	var cmd tea.Cmd

	switch md.kind {
	case modalRenameConversation:
		name := md.input.Value()
		id := md.conversationID
		cmd = m.runAction("rename conversation", func(ctx context.Context) (actions.Result, error) {
			return actions.RenameConversation(ctx, c, id, name)
		})

	case modalDeleteConversation:
		id := md.conversationID
		cmd = m.runAction("delete conversation", func(ctx context.Context) (actions.Result, error) {
			return actions.DeleteConversation(ctx, c, id)
		})

	case modalNewSpeaker:
		name := md.input.Value()
		cmd = m.runAction("create speaker", func(ctx context.Context) (actions.Result, error) {
			return actions.CreateSpeaker(ctx, c, name)
		})

	case modalRenameSpeaker:
		name := md.input.Value()
		id := md.speaker.ID
		cmd = m.runAction("rename speaker", func(ctx context.Context) (actions.Result, error) {
			return actions.RenameSpeaker(ctx, c, id, name)
		})

	case modalDeleteSpeaker:
		if md.prompt.Blocked {
			m.modal = nil
			return m.notify(actions.Notice{Level: actions.Warning, Text: md.prompt.Message})
		}
		sp := md.speaker
		cmd = m.runAction("delete speaker", func(ctx context.Context) (actions.Result, error) {
			return actions.DeleteSpeaker(ctx, c, sp)
		})

	case modalAssignSpeaker, modalReassignAll:
		opts := m.pickerOptions(md)
		if len(opts) == 0 || md.cursor >= len(opts) {
			return m, nil
		}
		choice := opts[md.cursor]
		target := actions.Target{ID: choice.ID, Name: choice.Name}
		if md.kind == modalAssignSpeaker {
			uttID := md.utteranceID
			cmd = m.runAction("assign speaker", func(ctx context.Context) (actions.Result, error) {
				return actions.AssignUtteranceSpeaker(ctx, c, uttID, target)
			})
		} else {
			bulk := actions.Bulk{
				ConversationID: md.conversationID,
				FromID:         md.speaker.ID,
				FromName:       md.fromName,
				Target:         target,
			}
			cmd = m.runAction("reassign utterances", func(ctx context.Context) (actions.Result, error) {
				return actions.ReassignAllInConversation(ctx, c, bulk)
			})
		}

	case modalEditText:
		text := md.input.String()
		uttID := md.utteranceID
		cmd = m.runAction("edit utterance", func(ctx context.Context) (actions.Result, error) {
			return actions.EditUtteranceText(ctx, c, uttID, strings.TrimSpace(text))
		})

	case modalUploadPath:
		path := md.input.Value()
		if path == "" {
			return m, nil
		}
		m.modal = nil
		return m.beginUpload(path)

	case modalDeleteEmbeddings:
		m.pending++
		cmd = deleteEmbeddingsCmd(ctx, c, md.embeddingOf)
	}

	m.modal = nil
	return m, cmd
}

// runAction counts the action as pending and runs it as a command.
func (m *Model) runAction(label string, run func(context.Context) (actions.Result, error)) tea.Cmd {
	m.pending++
	return actionCmd(m.ctx, label, run)
}
