package app

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/state"
	"github.com/jwulff/speakerdash/internal/upload"
	"github.com/jwulff/speakerdash/internal/view"
)

// Screen is the top-level page being shown.
type Screen int

const (
	ScreenConversations Screen = iota
	ScreenConversation
	ScreenSpeakers
	ScreenUpload
	ScreenEmbeddings
)

// PanelFocus tracks which panel of the conversation screen has keyboard focus.
type PanelFocus int

const (
	FocusUtterances PanelFocus = iota
	FocusSpeakers
)

// uploadTickEvery refreshes the elapsed time of a running upload.
const uploadTickEvery = time.Second

// Options configure a Model.
type Options struct {
	Client  *api.Client
	Uploads *upload.Controller
	Logger  zerolog.Logger
	// Context bounds every request the dashboard issues.
	Context             context.Context
	MatchThreshold      float64
	AutoUpdateThreshold float64
}

// Model is the root bubbletea model of the dashboard.
type Model struct {
	client  *api.Client
	uploads *upload.Controller
	store   *state.Store
	logger  zerolog.Logger
	ctx     context.Context

	// Connection state
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int

	// Navigation
	screen Screen
	focus  PanelFocus
	width  int
	height int

	convCursor    int
	uttCursor     int
	convSpkCursor int
	spkCursor     int
	embCursor     int

	// Loading and errors
	loading       string
	listErr       string
	loadingConvID api.ID
	detailID      api.ID
	detailErr     string
	pending       int

	speakerCounts map[api.ID]int
	embeddings    []view.EmbeddingRow
	embLoaded     bool

	// lastRows are the utterance rows of the last loaded conversation.
	lastRows []view.UtteranceRow

	notice    actions.Notice
	noticeSeq int
	modal     *modal

	// Upload
	session        *upload.Session
	uploadEvents   <-chan upload.Event
	uploadFile     io.Closer
	uploadCancel   context.CancelFunc
	matchThreshold float64
	autoUpdate     float64

	now func() time.Time
}

// New creates a Model with default state.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	uploads := opts.Uploads
	if uploads == nil && opts.Client != nil {
		uploads = upload.NewController(opts.Client, upload.DefaultOptions(), opts.Logger)
	}
	return Model{
		client:         opts.Client,
		uploads:        uploads,
		store:          state.NewStore(opts.Client, opts.Logger),
		logger:         opts.Logger,
		ctx:            ctx,
		loading:        "Loading conversations...",
		matchThreshold: opts.MatchThreshold,
		autoUpdate:     opts.AutoUpdateThreshold,
		now:            time.Now,
	}
}

// Init loads the conversation list.
func (m Model) Init() tea.Cmd {
	return loadConversationsCmd(m.ctx, m.client)
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ConversationsLoadedMsg:
		m.loading = ""
		if msg.Err != nil {
			if api.KindOf(msg.Err) == api.KindNetworkFailure {
				m.connected = false
				m.connError = api.Detail(msg.Err)
				m.reconnecting = true
				m.logger.Warn().Err(msg.Err).Int("attempt", m.reconnectAttempt).Msg("backend unreachable")
				return m, reconnectCmd(m.reconnectAttempt)
			}
			m.markOnline()
			m.listErr = actions.FailureNotice("load conversations", msg.Err).Text
			return m, nil
		}
		m.markOnline()
		m.listErr = ""
		m.store.ReplaceConversations(msg.Conversations)
		m.clampCursors()
		return m, nil

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, loadConversationsCmd(m.ctx, m.client)

	case SpeakersLoadedMsg:
		if msg.Err != nil {
			return m.notify(actions.FailureNotice("load speakers", msg.Err))
		}
		m.store.ReplaceSpeakers(msg.Speakers)
		m.clampCursors()
		m.syncOpenSpeaker()
		return m, nil

	case ConversationLoadedMsg:
		if msg.ID != m.loadingConvID {
			return m, nil
		}
		m.loadingConvID = ""
		if msg.Err != nil {
			m.detailErr = actions.FailureNotice("load conversation", msg.Err).Text
			m.logger.Warn().Err(msg.Err).Str("conversation_id", msg.ID.String()).Msg("conversation fetch failed")
			return m, nil
		}
		m.detailErr = ""
		m.store.SetOpenConversation(msg.Conversation)
		m.lastRows = view.UtteranceRows(m.store.Snapshot())
		m.clampCursors()
		return m, nil

	case SpeakerCountsMsg:
		m.loading = ""
		if msg.Err != nil {
			return m.notify(actions.FailureNotice("count conversations", msg.Err))
		}
		m.speakerCounts = msg.Counts
		return m, nil

	case EmbeddingsLoadedMsg:
		if msg.Err != nil {
			return m.notify(actions.FailureNotice("load embeddings", msg.Err))
		}
		m.embeddings = view.EmbeddingRows(msg.Speakers)
		m.embLoaded = true
		m.clampCursors()
		return m, nil

	case ActionDoneMsg:
		return m.handleActionDone(msg)

	case UploadStartedMsg:
		if msg.Err != nil {
			if m.uploadCancel != nil {
				m.uploadCancel()
				m.uploadCancel = nil
			}
			return m.notify(actions.FailureNotice("start upload", msg.Err))
		}
		m.session = msg.Session
		m.uploadEvents = msg.Events
		m.uploadFile = msg.File
		return m, tea.Batch(
			waitUploadCmd(msg.Session.ID, msg.Events),
			uploadTickCmd(msg.Session.ID, m.tickInterval()),
		)

	case UploadEventMsg:
		return m.handleUploadEvent(msg)

	case UploadTickMsg:
		if m.session == nil || msg.SessionID != m.session.ID {
			return m, nil
		}
		if m.session.Stage.Terminal() {
			m.session.RevealNext(msg.At)
		} else {
			m.session.Tick(msg.At)
		}
		if m.session.Stage.Terminal() && m.session.Pending() == 0 {
			return m, nil
		}
		return m, uploadTickCmd(m.session.ID, m.tickInterval())

	case ClearNoticeMsg:
		if msg.Seq == m.noticeSeq {
			m.notice = actions.Notice{}
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) markOnline() {
	m.connected = true
	m.connError = ""
	m.reconnecting = false
	m.reconnectAttempt = 0
}

// handleActionDone applies whatever the server confirmed, reports the
// outcome and reloads lists the patch could not mirror exactly.
func (m Model) handleActionDone(msg ActionDoneMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}
	if err := msg.Result.Apply(m.store); err != nil {
		m.logger.Warn().Err(err).Str("action", msg.Label).Msg("local patch failed, reloading")
		m.store.MarkStale()
	}

	notice := msg.Result.Notice
	if msg.Err != nil {
		notice = actions.FailureNotice(msg.Label, msg.Err)
		m.logger.Warn().Err(msg.Err).Str("action", msg.Label).Msg("action failed")
		// A timed out request may still have been applied by the server.
		if api.KindOf(msg.Err) == api.KindTimeout {
			m.store.MarkStale()
		}
	}

	var cmds []tea.Cmd
	if notice.Text != "" {
		cmds = append(cmds, m.setNotice(notice))
	}

	openID, open := m.store.OpenConversationID()
	if m.screen == ScreenConversation && !open && m.loadingConvID == "" {
		m.screen = ScreenConversations
		m.detailErr = ""
	}
	if m.store.ConversationsStale() {
		cmds = append(cmds, loadConversationsCmd(m.ctx, m.client))
		if open {
			m.loadingConvID = openID
			cmds = append(cmds, openConversationCmd(m.ctx, m.client, openID))
		}
	}
	if m.store.SpeakersStale() {
		cmds = append(cmds, loadSpeakersCmd(m.ctx, m.client))
	}
	if msg.ReloadEmbeddings {
		cmds = append(cmds, loadEmbeddingsCmd(m.ctx, m.client))
	}
	if open {
		m.lastRows = view.UtteranceRows(m.store.Snapshot())
	}
	m.clampCursors()
	m.syncOpenSpeaker()
	return m, tea.Batch(cmds...)
}

func (m Model) handleUploadEvent(msg UploadEventMsg) (tea.Model, tea.Cmd) {
	if msg.Closed {
		if m.uploadFile != nil {
			m.uploadFile.Close()
			m.uploadFile = nil
		}
		if m.uploadCancel != nil {
			m.uploadCancel()
			m.uploadCancel = nil
		}
		m.uploadEvents = nil
		return m, nil
	}
	if m.session == nil || msg.SessionID != m.session.ID {
		return m, nil
	}
	m.session.Apply(msg.Event)
	cmds := []tea.Cmd{waitUploadCmd(msg.SessionID, m.uploadEvents)}
	if msg.Event.Kind == upload.EventFinished {
		if msg.Event.Err != nil {
			cmds = append(cmds, m.setNotice(actions.FailureNotice("upload "+m.session.FileName, msg.Event.Err)))
		} else {
			m.store.MarkStale()
			cmds = append(cmds,
				m.setNotice(actions.Notice{Level: actions.Success, Text: fmt.Sprintf("Upload of %s finished.", m.session.FileName)}),
				loadConversationsCmd(m.ctx, m.client),
				loadSpeakersCmd(m.ctx, m.client),
			)
		}
	}
	return m, tea.Batch(cmds...)
}

// tickInterval spaces upload ticks: fast while lines are queued for reveal.
func (m Model) tickInterval() time.Duration {
	if m.session != nil && m.session.Pending() > 0 && m.uploads != nil {
		if r := m.uploads.Options().Reveal; r > 0 {
			return r
		}
	}
	return uploadTickEvery
}

// uploadInFlight reports whether an upload request has not yet settled.
func (m Model) uploadInFlight() bool { return m.uploadEvents != nil }

// setNotice shows n and schedules its removal.
func (m *Model) setNotice(n actions.Notice) tea.Cmd {
	m.noticeSeq++
	m.notice = n
	return clearNoticeCmd(m.noticeSeq)
}

// notify shows n and returns the model with its removal scheduled.
func (m Model) notify(n actions.Notice) (tea.Model, tea.Cmd) {
	cmd := m.setNotice(n)
	return m, cmd
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		m.shutdown()
		return m, tea.Quit
	}
	if m.modal != nil {
		return m.handleModalKey(msg)
	}

	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		m.shutdown()
		return m, tea.Quit
	case KeyScreen1:
		return m.switchScreen(ScreenConversations)
	case KeyScreen2:
		return m.switchScreen(ScreenSpeakers)
	case KeyScreen3:
		return m.switchScreen(ScreenUpload)
	case KeyScreen4:
		return m.switchScreen(ScreenEmbeddings)
	}

	switch m.screen {
	case ScreenConversations:
		return m.handleConversationsKey(msg)
	case ScreenConversation:
		return m.handleConversationKey(msg)
	case ScreenSpeakers:
		return m.handleSpeakersKey(msg)
	case ScreenUpload:
		return m.handleUploadKey(msg)
	case ScreenEmbeddings:
		return m.handleEmbeddingsKey(msg)
	}
	return m, nil
}

// shutdown stops cosmetic upload progress. A running request is left to
// finish on its own.
func (m *Model) shutdown() {
	if m.session != nil && !m.session.Stage.Terminal() {
		m.session.Detach()
	}
}

func (m Model) switchScreen(to Screen) (tea.Model, tea.Cmd) {
	if m.screen == ScreenUpload && to != ScreenUpload && m.session != nil && !m.session.Stage.Terminal() {
		m.session.Detach()
	}
	if m.screen == ScreenConversation && to != ScreenConversation {
		m.store.CloseConversation()
		m.loadingConvID = ""
		m.detailErr = ""
	}
	m.screen = to

	var cmds []tea.Cmd
	switch to {
	case ScreenConversations:
		if m.store.ConversationsStale() {
			cmds = append(cmds, loadConversationsCmd(m.ctx, m.client))
		}
	case ScreenSpeakers:
		if m.store.NeedsSpeakers() || m.store.SpeakersStale() {
			cmds = append(cmds, loadSpeakersCmd(m.ctx, m.client))
		}
		m.syncOpenSpeaker()
	case ScreenEmbeddings:
		if !m.embLoaded {
			cmds = append(cmds, loadEmbeddingsCmd(m.ctx, m.client))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleConversationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := view.ConversationRows(m.store.Snapshot())
	switch msg.String() {
	case KeyUp, KeyK:
		m.convCursor = max(0, m.convCursor-1)
	case KeyDown, KeyJ:
		m.convCursor = min(max(0, len(rows)-1), m.convCursor+1)
	case KeyRetry:
		m.loading = "Loading conversations..."
		return m, loadConversationsCmd(m.ctx, m.client)
	case KeyEnter:
		if m.convCursor < len(rows) {
			return m.openConversation(rows[m.convCursor].ID)
		}
	case KeyRename:
		if m.convCursor < len(rows) {
			name := ""
			for _, c := range m.store.Snapshot().Conversations {
				if c.ID == rows[m.convCursor].ID {
					name = c.DisplayName
				}
			}
			m.modal = &modal{
				kind:           modalRenameConversation,
				title:          "Rename conversation",
				input:          newLineInput(name),
				conversationID: rows[m.convCursor].ID,
			}
		}
	case KeyDelete:
		if m.convCursor < len(rows) {
			m.modal = &modal{
				kind:           modalDeleteConversation,
				title:          "Delete " + rows[m.convCursor].Title + "? Its utterances are removed too.",
				conversationID: rows[m.convCursor].ID,
			}
		}
	case KeyUpload:
		return m.openUploadModal()
	}
	return m, nil
}

// openConversation shows the detail screen and fetches the conversation,
// loading speakers first when none are loaded yet.
func (m Model) openConversation(id api.ID) (tea.Model, tea.Cmd) {
	m.screen = ScreenConversation
	m.focus = FocusUtterances
	m.loadingConvID = id
	m.detailID = id
	m.detailErr = ""
	m.uttCursor = 0
	m.convSpkCursor = 0
	if m.store.NeedsSpeakers() {
		return m, tea.Sequence(loadSpeakersCmd(m.ctx, m.client), openConversationCmd(m.ctx, m.client, id))
	}
	return m, openConversationCmd(m.ctx, m.client, id)
}

func (m Model) handleConversationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.store.Snapshot()
	rows := view.UtteranceRows(snap)
	speakers := view.ConversationSpeakers(snap)

	switch msg.String() {
	case KeyEsc, KeyBackspace:
		return m.switchScreen(ScreenConversations)
	case KeyTab:
		if m.focus == FocusUtterances {
			m.focus = FocusSpeakers
		} else {
			m.focus = FocusUtterances
		}
	case KeyUp, KeyK:
		if m.focus == FocusUtterances {
			m.uttCursor = max(0, m.uttCursor-1)
		} else {
			m.convSpkCursor = max(0, m.convSpkCursor-1)
		}
	case KeyDown, KeyJ:
		if m.focus == FocusUtterances {
			m.uttCursor = min(max(0, len(rows)-1), m.uttCursor+1)
		} else {
			m.convSpkCursor = min(max(0, len(speakers)-1), m.convSpkCursor+1)
		}
	case KeyRetry:
		m.loadingConvID = m.detailID
		m.detailErr = ""
		return m, openConversationCmd(m.ctx, m.client, m.detailID)
	case KeyRename:
		if snap.OpenConversation != nil {
			m.modal = &modal{
				kind:           modalRenameConversation,
				title:          "Rename conversation",
				input:          newLineInput(snap.OpenConversation.DisplayName),
				conversationID: snap.OpenConversation.ID,
			}
		}
	case KeyAssign:
		if m.uttCursor < len(rows) {
			return m.openAssignModal(rows[m.uttCursor])
		}
	case KeyEnter:
		if m.focus == FocusSpeakers {
			return m.openReassignModal(speakers)
		}
		if m.uttCursor < len(rows) {
			return m.openAssignModal(rows[m.uttCursor])
		}
	case KeyReassign:
		return m.openReassignModal(speakers)
	case KeyEditText:
		if m.uttCursor < len(rows) {
			rec, ok := actions.ResolveUtterance(m.store, m.lastRows, rows[m.uttCursor].ID)
			if !ok {
				return m.notify(actions.Notice{Level: actions.Warning, Text: "That utterance is no longer loaded."})
			}
			m.modal = &modal{
				kind:        modalEditText,
				title:       "Edit utterance text",
				input:       newLineInput(rec.Utterance.Text),
				utteranceID: rec.Utterance.ID,
				provenance:  rec.Provenance,
			}
		}
	}
	return m, nil
}

func (m Model) openAssignModal(row view.UtteranceRow) (tea.Model, tea.Cmd) {
	m.modal = &modal{
		kind:        modalAssignSpeaker,
		title:       fmt.Sprintf("Assign speaker for %s", row.Start),
		utteranceID: row.ID,
		currentID:   row.SpeakerID,
	}
	return m, nil
}

func (m Model) openReassignModal(speakers []view.ConversationSpeaker) (tea.Model, tea.Cmd) {
	id, open := m.store.OpenConversationID()
	if !open || m.convSpkCursor >= len(speakers) {
		return m, nil
	}
	cs := speakers[m.convSpkCursor]
	if cs.ID == "" {
		return m.notify(actions.Notice{Level: actions.Warning, Text: "Unassigned utterances have to be assigned one at a time."})
	}
	sp, _ := m.store.Speaker(cs.ID)
	sp.ID = cs.ID
	m.modal = &modal{
		kind:           modalReassignAll,
		title:          fmt.Sprintf("Reassign all %d utterances of %s to", cs.Utterances, cs.Name),
		conversationID: id,
		speaker:        sp,
		fromName:       cs.Name,
		currentID:      cs.ID,
	}
	return m, nil
}

func (m Model) handleSpeakersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.store.Snapshot()
	rows := view.SpeakerRows(snap, m.speakerCounts)
	switch msg.String() {
	case KeyUp, KeyK:
		m.spkCursor = max(0, m.spkCursor-1)
		m.syncOpenSpeaker()
	case KeyDown, KeyJ:
		m.spkCursor = min(max(0, len(rows)-1), m.spkCursor+1)
		m.syncOpenSpeaker()
	case KeyRetry:
		return m, loadSpeakersCmd(m.ctx, m.client)
	case KeyNew:
		m.modal = &modal{kind: modalNewSpeaker, title: "New speaker"}
	case KeyRename:
		if m.spkCursor < len(rows) {
			sp, _ := m.store.Speaker(rows[m.spkCursor].ID)
			m.modal = &modal{
				kind:    modalRenameSpeaker,
				title:   "Rename speaker",
				input:   newLineInput(sp.Name),
				speaker: sp,
			}
		}
	case KeyDelete:
		if m.spkCursor < len(rows) {
			prompt, ok := view.DeleteSpeakerPrompt(snap, rows[m.spkCursor].ID)
			if !ok {
				return m, nil
			}
			sp, _ := m.store.Speaker(prompt.SpeakerID)
			m.modal = &modal{
				kind:    modalDeleteSpeaker,
				title:   "Delete speaker",
				speaker: sp,
				prompt:  prompt,
			}
		}
	case KeyCount:
		snap := m.store.Snapshot()
		ids := make([]api.ID, 0, len(snap.Conversations))
		for _, c := range snap.Conversations {
			ids = append(ids, c.ID)
		}
		m.loading = fmt.Sprintf("Counting conversations across %d recordings...", len(ids))
		return m, speakerCountsCmd(m.ctx, m.client, ids)
	}
	return m, nil
}

// syncOpenSpeaker opens the speaker under the cursor.
func (m *Model) syncOpenSpeaker() {
	if m.screen != ScreenSpeakers {
		return
	}
	rows := view.SpeakerRows(m.store.Snapshot(), m.speakerCounts)
	if m.spkCursor < len(rows) && m.store.OpenSpeaker(rows[m.spkCursor].ID) {
		return
	}
	m.store.CloseSpeaker()
}

func (m Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyUpload, KeyEnter:
		return m.openUploadModal()
	case KeyCancel:
		if m.uploadInFlight() && m.uploadCancel != nil {
			m.uploadCancel()
			return m.notify(actions.Notice{Level: actions.Warning, Text: "Cancelling upload..."})
		}
	case KeyOpenResult:
		if m.session == nil || m.session.Stage != upload.Done {
			return m, nil
		}
		target := m.session.Result.ConversationID
		for _, c := range m.store.Snapshot().Conversations {
			if c.ConversationID == target || c.ID.String() == target {
				return m.openConversation(c.ID)
			}
		}
		return m.notify(actions.Notice{Level: actions.Info, Text: "The new conversation is not listed yet. Try again in a moment."})
	}
	return m, nil
}

func (m Model) openUploadModal() (tea.Model, tea.Cmd) {
	if m.uploadInFlight() {
		m.screen = ScreenUpload
		return m.notify(actions.Notice{Level: actions.Warning, Text: "An upload is already running."})
	}
	m.screen = ScreenUpload
	m.modal = &modal{kind: modalUploadPath, title: "Upload audio file (path)"}
	return m, nil
}

// beginUpload issues an upload of path under a cancellable context.
func (m Model) beginUpload(path string) (tea.Model, tea.Cmd) {
	if m.uploads == nil {
		return m.notify(actions.Notice{Level: actions.Failure, Text: "Uploads are not available."})
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.uploadCancel = cancel
	m.screen = ScreenUpload
	return m, startUploadCmd(ctx, m.uploads, uploadParams{
		Path:                path,
		MatchThreshold:      m.matchThreshold,
		AutoUpdateThreshold: m.autoUpdate,
	})
}

func (m Model) handleEmbeddingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyUp, KeyK:
		m.embCursor = max(0, m.embCursor-1)
	case KeyDown, KeyJ:
		m.embCursor = min(max(0, len(m.embeddings)-1), m.embCursor+1)
	case KeyRetry:
		return m, loadEmbeddingsCmd(m.ctx, m.client)
	case KeyDelete:
		if m.embCursor < len(m.embeddings) {
			row := m.embeddings[m.embCursor]
			m.modal = &modal{
				kind:        modalDeleteEmbeddings,
				title:       fmt.Sprintf("Delete all %d embeddings of %s?", row.Count, row.Speaker),
				embeddingOf: row.Speaker,
			}
		}
	}
	return m, nil
}

// clampCursors keeps every cursor inside its list.
func (m *Model) clampCursors() {
	snap := m.store.Snapshot()
	m.convCursor = clamp(m.convCursor, len(snap.Conversations))
	m.spkCursor = clamp(m.spkCursor, len(snap.Speakers))
	m.embCursor = clamp(m.embCursor, len(m.embeddings))
	if snap.OpenConversation != nil {
		m.uttCursor = clamp(m.uttCursor, len(snap.OpenConversation.Utterances))
		m.convSpkCursor = clamp(m.convSpkCursor, len(view.ConversationSpeakers(snap)))
	}
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	return max(0, cursor)
}
