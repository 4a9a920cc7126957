package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/speakerdash/internal/actions"
	"github.com/jwulff/speakerdash/internal/api"
	"github.com/jwulff/speakerdash/internal/format"
	"github.com/jwulff/speakerdash/internal/ui"
	"github.com/jwulff/speakerdash/internal/view"
)

var tabs = []struct {
	key    string
	label  string
	screen Screen
}{
	{KeyScreen1, "Conversations", ScreenConversations},
	{KeyScreen2, "Speakers", ScreenSpeakers},
	{KeyScreen3, "Upload", ScreenUpload},
	{KeyScreen4, "Embeddings", ScreenEmbeddings},
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + divider(1) + divider(1) + notice(1) + footer(1) + padding
	return max(5, m.height-7)
}

func (m Model) listPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*30/100)
}

func (m Model) detailPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.listPanelWidth()-3)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.modal != nil {
		sections = append(sections, lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, m.renderModal()))
	} else {
		sections = append(sections, m.renderContent())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderNotice())
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("SPEAKERDASH")
	active := m.screen
	if active == ScreenConversation {
		active = ScreenConversations
	}
	var parts []string
	for _, t := range tabs {
		label := fmt.Sprintf("%s %s", t.key, t.label)
		if t.screen == active {
			parts = append(parts, ui.TabActiveStyle.Render(label))
		} else {
			parts = append(parts, ui.TabStyle.Render(label))
		}
	}
	return title + "  " + strings.Join(parts, "  ")
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.connected:
		dot = ui.OnlineDotStyle.Render("● ONLINE")
	case m.reconnecting:
		dot = ui.OfflineDotStyle.Render("○ OFFLINE")
	default:
		dot = ui.StatusStyle.Render("○ CONNECTING")
	}
	host := ""
	if m.client != nil {
		host = ui.DimStyle.Render(" " + m.client.BaseURL())
	}

	var extra []string
	if m.loading != "" {
		extra = append(extra, ui.SpinnerStyle.Render("⟳ "+m.loading))
	}
	if m.pending > 0 {
		extra = append(extra, ui.SpinnerStyle.Render(fmt.Sprintf("⟳ %d saving", m.pending)))
	}
	if m.session != nil && !m.session.Stage.Terminal() && m.screen != ScreenUpload {
		extra = append(extra, ui.SpinnerStyle.Render("⟳ upload "+m.session.Stage.String()))
	}
	line := dot + host
	if len(extra) > 0 {
		line += "  " + strings.Join(extra, "  ")
	}
	return line
}

func (m Model) renderContent() string {
	h := m.contentHeight()
	if !m.connected {
		return m.renderDisconnected(h)
	}
	switch m.screen {
	case ScreenConversation:
		return m.renderConversation(h)
	case ScreenSpeakers:
		return m.renderSpeakers(h)
	case ScreenUpload:
		return fitHeight(m.renderUpload(), h)
	case ScreenEmbeddings:
		return m.renderEmbeddings(h)
	default:
		return m.renderConversations(h)
	}
}

func (m Model) renderDisconnected(h int) string {
	var lines []string
	lines = append(lines, "")
	switch {
	case m.reconnecting:
		lines = append(lines, ui.ErrorTextStyle.Render("  Backend unreachable. Reconnecting..."))
		if m.connError != "" {
			lines = append(lines, ui.DimStyle.Render("  "+truncateToWidth(m.connError, m.width-4)))
		}
	default:
		lines = append(lines, ui.DimStyle.Render("  Connecting to the backend..."))
	}
	return fitHeight(strings.Join(lines, "\n"), h)
}

func (m Model) renderConversations(h int) string {
	rows := view.ConversationRows(m.store.Snapshot())
	var lines []string
	lines = append(lines, ui.PanelTitleActiveStyle.Render(fmt.Sprintf("CONVERSATIONS (%d)", len(rows))))

	if m.listErr != "" {
		lines = append(lines, "", ui.ErrorTextStyle.Render("  "+m.listErr), ui.DimStyle.Render("  Press r to retry"))
		return fitHeight(strings.Join(lines, "\n"), h)
	}
	if len(rows) == 0 {
		if m.loading == "" {
			lines = append(lines, "", ui.DimStyle.Render("  No conversations yet. Press u to upload a recording."))
		}
		return fitHeight(strings.Join(lines, "\n"), h)
	}

	titleW := max(10, m.width-52)
	lines = append(lines, ui.DimStyle.Render("  "+padRight("TITLE", titleW)+"  "+padRight("DATE", 22)+padRight("LENGTH", 10)+"SPEAKERS"))
	start, end := window(m.convCursor, len(rows), h-2)
	for i := start; i < end; i++ {
		r := rows[i]
		line := padRight(truncateToWidth(r.Title, titleW), titleW) + "  " + padRight(r.Date, 22) + padRight(r.Duration, 10) + fmt.Sprintf("%d", r.Speakers)
		if i == m.convCursor {
			lines = append(lines, ui.SelectedStyle.Render("> "+line))
		} else {
			lines = append(lines, "  "+line)
		}
	}
	return fitHeight(strings.Join(lines, "\n"), h)
}

func (m Model) renderConversation(h int) string {
	snap := m.store.Snapshot()
	header, ok := view.ConversationHeader(snap)
	if !ok || (m.detailErr != "" && header.ID != m.detailID) {
		var lines []string
		switch {
		case m.detailErr != "":
			lines = append(lines, "", ui.ErrorTextStyle.Render("  "+m.detailErr), ui.DimStyle.Render("  Press r to retry, esc to go back"))
		default:
			lines = append(lines, "", ui.DimStyle.Render("  Loading conversation..."))
		}
		return fitHeight(strings.Join(lines, "\n"), h)
	}

	leftW := m.listPanelWidth()
	rightW := m.detailPanelWidth()
	left := m.renderConversationSpeakers(view.ConversationSpeakers(snap), leftW, h)
	right := m.renderUtterances(header, view.UtteranceRows(snap), rightW, h)
	return joinPanels(left, right, leftW, h)
}

func (m Model) renderConversationSpeakers(speakers []view.ConversationSpeaker, width, height int) string {
	title := fmt.Sprintf("SPEAKERS (%d)", len(speakers))
	var lines []string
	if m.focus == FocusSpeakers {
		lines = append(lines, padRight(ui.PanelTitleActiveStyle.Render(title), width))
	} else {
		lines = append(lines, padRight(ui.PanelTitleStyle.Render(title), width))
	}
	for i, s := range speakers {
		name := s.Name
		meta := fmt.Sprintf(" %d · %s", s.Utterances, s.Duration)
		nameW := max(4, width-lipgloss.Width(meta)-2)
		name = truncateToWidth(name, nameW)
		var line string
		switch {
		case i == m.convSpkCursor && m.focus == FocusSpeakers:
			line = ui.SelectedStyle.Render("> "+name) + ui.DimStyle.Render(meta)
		case s.ID == "":
			line = "  " + ui.UnassignedStyle.Render(name) + ui.DimStyle.Render(meta)
		default:
			line = "  " + ui.SpeakerStyle.Render(name) + ui.DimStyle.Render(meta)
		}
		lines = append(lines, line)
	}
	return padLines(lines, width, height)
}

func (m Model) renderUtterances(header view.Header, rows []view.UtteranceRow, width, height int) string {
	title := truncateToWidth(strings.ToUpper(header.Title), max(10, width-30))
	badge := ui.DimStyle.Render(fmt.Sprintf("  %s · %s · %d utterances", header.Date, header.Duration, header.Utterances))
	var lines []string
	if m.focus == FocusUtterances {
		lines = append(lines, ui.PanelTitleActiveStyle.Render(title)+badge)
	} else {
		lines = append(lines, ui.PanelTitleStyle.Render(title)+badge)
	}
	if m.detailErr != "" {
		lines = append(lines, ui.ErrorTextStyle.Render(" "+m.detailErr+" (r to retry)"))
	}
	contentH := height - len(lines)
	if len(rows) == 0 {
		lines = append(lines, "", ui.DimStyle.Render("  No utterances in this conversation."))
		return padLines(lines, 0, height)
	}

	// Prefix: "> [00:00:00] " = 13 chars visible
	prefixW := 13
	textW := max(10, width-prefixW-1)
	indent := strings.Repeat(" ", prefixW)

	var display []string
	selStart, selEnd := 0, 0
	for i, r := range rows {
		selected := i == m.uttCursor
		if selected {
			selStart = len(display)
		}
		marker := "  "
		if selected && m.focus == FocusUtterances {
			marker = ui.SelectedStyle.Render("> ")
		}
		ts := ui.TimestampStyle.Render("[" + r.Start + "]")
		var speaker string
		if r.SpeakerID == "" {
			speaker = ui.UnassignedStyle.Render(r.Speaker)
		} else {
			speaker = ui.SpeakerStyle.Render(r.Speaker)
		}
		display = append(display, marker+ts+" "+speaker+ui.DimStyle.Render(" ("+r.Duration+")"))
		wrapped := wrapText(r.Text, textW)
		for _, wl := range wrapped {
			if r.NoText {
				display = append(display, indent+ui.DimStyle.Render(wl))
			} else if selected && m.focus == FocusUtterances {
				display = append(display, indent+ui.SelectedStyle.Render(wl))
			} else {
				display = append(display, indent+wl)
			}
		}
		if selected {
			selEnd = len(display)
		}
	}

	start := 0
	if selEnd > contentH {
		start = selEnd - contentH
	}
	if selStart < start {
		start = selStart
	}
	end := min(len(display), start+contentH)
	lines = append(lines, display[start:end]...)
	return padLines(lines, 0, height)
}

func (m Model) renderSpeakers(h int) string {
	snap := m.store.Snapshot()
	rows := view.SpeakerRows(snap, m.speakerCounts)
	leftW := m.listPanelWidth()

	var left []string
	left = append(left, padRight(ui.PanelTitleActiveStyle.Render(fmt.Sprintf("SPEAKERS (%d)", len(rows))), leftW))
	if len(rows) == 0 {
		if m.store.NeedsSpeakers() {
			left = append(left, ui.DimStyle.Render("  Loading speakers..."))
		} else {
			left = append(left, ui.DimStyle.Render("  No speakers. Press n to add one."))
		}
	}
	start, end := window(m.spkCursor, len(rows), h-1)
	for i := start; i < end; i++ {
		r := rows[i]
		meta := fmt.Sprintf(" %s", format.Count(r.Utterances))
		name := truncateToWidth(r.Name, max(4, leftW-lipgloss.Width(meta)-2))
		switch {
		case i == m.spkCursor:
			left = append(left, ui.SelectedStyle.Render("> "+name)+ui.DimStyle.Render(meta))
		case r.Unknown:
			left = append(left, "  "+ui.UnassignedStyle.Render(name)+ui.DimStyle.Render(meta))
		default:
			left = append(left, "  "+name+ui.DimStyle.Render(meta))
		}
	}

	var right []string
	right = append(right, ui.PanelTitleStyle.Render("DETAILS"))
	if card, ok := view.SpeakerDetail(snap, m.speakerCounts); ok {
		convs := ui.DimStyle.Render("press c to count")
		if m.speakerCounts != nil {
			convs = format.Count(card.Conversations)
		}
		right = append(right,
			"",
			"  "+ui.SpeakerStyle.Render(card.Name),
			"",
			"  Utterances     "+format.Count(card.Utterances),
			"  Total speech   "+card.Duration,
			"  Average        "+card.Average,
			"  Conversations  "+convs,
		)
		if card.Name == api.UnknownSpeakerName {
			right = append(right, "", ui.DimStyle.Render("  Utterances of deleted speakers end up here."))
		}
	}
	return joinPanels(padLines(left, leftW, h), padLines(right, 0, h), leftW, h)
}

func (m Model) renderUpload() string {
	status := view.UploadPanel(m.session, m.now())
	var lines []string
	lines = append(lines, ui.PanelTitleActiveStyle.Render("UPLOAD"))
	if m.session == nil {
		lines = append(lines, "", ui.DimStyle.Render("  Press u to upload an audio recording."))
		return strings.Join(lines, "\n")
	}

	info := fmt.Sprintf("  %s (%s) · %s · %s", status.File, status.Size, status.Stage, status.Elapsed)
	if status.Detached && !status.Finished {
		info += ui.DimStyle.Render(" · running in background")
	}
	lines = append(lines, info, "")
	for _, s := range status.Steps {
		switch s.State {
		case view.StepDone:
			lines = append(lines, ui.StepDoneStyle.Render("  ✓ "+s.Label))
		case view.StepActive:
			lines = append(lines, ui.StepActiveStyle.Render("  ● "+s.Label))
		case view.StepFailed:
			lines = append(lines, ui.ErrorStyle.Render("  ✗ "+s.Label))
		default:
			lines = append(lines, ui.StepPendingStyle.Render("  ○ "+s.Label))
		}
	}
	lines = append(lines, "")

	logH := max(3, m.contentHeight()-len(lines)-2)
	logLines := status.Lines
	if len(logLines) > logH {
		logLines = logLines[len(logLines)-logH:]
	}
	for _, l := range logLines {
		style := ui.DimStyle
		if strings.HasPrefix(l, "Error") {
			style = ui.ErrorTextStyle
		} else if strings.HasPrefix(l, "Done") {
			style = ui.SuccessStyle
		}
		lines = append(lines, style.Render("  "+truncateToWidth(l, m.width-4)))
	}
	if status.Finished && !status.Failed && status.ConversationID != "" {
		lines = append(lines, "", ui.DimStyle.Render("  Press o to open the new conversation."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEmbeddings(h int) string {
	leftW := m.listPanelWidth()
	var left []string
	left = append(left, padRight(ui.PanelTitleActiveStyle.Render(fmt.Sprintf("VOICES (%d)", len(m.embeddings))), leftW))
	if !m.embLoaded {
		left = append(left, ui.DimStyle.Render("  Loading embeddings..."))
	} else if len(m.embeddings) == 0 {
		left = append(left, ui.DimStyle.Render("  No enrolled voices."))
	}
	start, end := window(m.embCursor, len(m.embeddings), h-1)
	for i := start; i < end; i++ {
		r := m.embeddings[i]
		meta := ui.DimStyle.Render(fmt.Sprintf(" %d", r.Count))
		name := truncateToWidth(r.Speaker, max(4, leftW-6))
		if i == m.embCursor {
			left = append(left, ui.SelectedStyle.Render("> "+name)+meta)
		} else {
			left = append(left, "  "+name+meta)
		}
	}

	var right []string
	right = append(right, ui.PanelTitleStyle.Render("EMBEDDINGS"))
	if m.embCursor < len(m.embeddings) {
		for _, id := range m.embeddings[m.embCursor].Embeddings {
			right = append(right, "  "+ui.TimestampStyle.Render(id))
		}
	}
	return joinPanels(padLines(left, leftW, h), padLines(right, 0, h), leftW, h)
}

func (m Model) renderModal() string {
	md := m.modal
	width := min(max(30, m.width-10), 70)
	var lines []string
	lines = append(lines, ui.PanelTitleActiveStyle.Render(truncateToWidth(md.title, width)), "")

	switch {
	case md.kind == modalDeleteSpeaker:
		lines = append(lines, wrapText(md.prompt.Message, width)...)
		if md.prompt.Blocked {
			lines = append(lines, "", ui.DimStyle.Render("esc close"))
		} else {
			lines = append(lines, "", ui.FooterKeyStyle.Render("y")+ui.FooterDescStyle.Render(" delete  ")+ui.FooterKeyStyle.Render("n")+ui.FooterDescStyle.Render(" keep"))
		}

	case md.isConfirm():
		lines = append(lines, ui.FooterKeyStyle.Render("y")+ui.FooterDescStyle.Render(" delete  ")+ui.FooterKeyStyle.Render("n")+ui.FooterDescStyle.Render(" keep"))

	case md.isPicker():
		lines = append(lines, ui.DimStyle.Render("Filter: ")+ui.InputStyle.Render(md.input.render()), "")
		opts := m.pickerOptions(md)
		if len(opts) == 0 {
			lines = append(lines, ui.DimStyle.Render("Type a name to create a speaker."))
		}
		start, end := window(md.cursor, len(opts), 8)
		for i := start; i < end; i++ {
			o := opts[i]
			label := o.Name
			if o.create {
				label = "+ New speaker \"" + o.Name + "\""
			}
			if o.Current {
				label += ui.DimStyle.Render(" (current)")
			}
			if i == md.cursor {
				lines = append(lines, ui.SelectedStyle.Render("> ")+ui.SelectedStyle.Render(label))
			} else {
				lines = append(lines, "  "+label)
			}
		}

	default:
		if md.kind == modalEditText && md.provenance == view.ProvenanceRendered {
			lines = append(lines, ui.ProvenanceBadgeStyle.Render("recovered from screen; timing approximate"), "")
		}
		lines = append(lines, ui.InputStyle.Render(md.input.render()))
	}
	return ui.ModalStyle.Width(width + 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderNotice() string {
	if m.notice.Text == "" {
		return ""
	}
	switch m.notice.Level {
	case actions.Failure:
		return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.notice.Text)
	case actions.Warning:
		return ui.WarningStyle.Render(m.notice.Text)
	case actions.Success:
		return ui.SuccessStyle.Render(m.notice.Text)
	default:
		return ui.StatusStyle.Render(m.notice.Text)
	}
}

func (m Model) renderFooter() string {
	var parts []string
	key := func(k, desc string) {
		parts = append(parts, ui.FooterKeyStyle.Render(k)+ui.FooterDescStyle.Render(" "+desc))
	}

	if m.modal != nil {
		switch {
		case m.modal.isConfirm():
			key("y/n", "Confirm")
		case m.modal.isPicker():
			key("↑↓", "Choose")
			key("Enter", "Assign")
		default:
			key("Enter", "Save")
		}
		key("Esc", "Cancel")
		return strings.Join(parts, "  ")
	}

	switch m.screen {
	case ScreenConversations:
		key("Enter", "Open")
		key("e", "Rename")
		key("d", "Delete")
		key("u", "Upload")
		key("r", "Reload")
	case ScreenConversation:
		key("Esc", "Back")
		key("Tab", "Focus")
		key("s", "Speaker")
		key("t", "Text")
		key("R", "Reassign all")
		key("e", "Rename")
	case ScreenSpeakers:
		key("n", "New")
		key("e", "Rename")
		key("d", "Delete")
		key("c", "Count")
		key("r", "Reload")
	case ScreenUpload:
		key("u", "Upload")
		if m.uploadInFlight() {
			key("x", "Cancel")
		}
		if m.session != nil && m.session.Result.ConversationID != "" {
			key("o", "Open")
		}
	case ScreenEmbeddings:
		key("d", "Delete")
		key("r", "Reload")
	}
	key("j/k", "Nav")
	key("1-4", "Screens")
	key("q", "Quit")
	return strings.Join(parts, "  ")
}

// Helpers

// joinPanels places two rendered panels side by side.
func joinPanels(left, right string, leftW, height int) string {
	divider := ui.DividerStyle.Render("│")
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")
	for len(leftLines) < height {
		leftLines = append(leftLines, strings.Repeat(" ", leftW))
	}
	var rows []string
	for i := 0; i < height; i++ {
		r := ""
		if i < len(rightLines) {
			r = rightLines[i]
		}
		rows = append(rows, padRight(leftLines[i], leftW)+divider+" "+r)
	}
	return strings.Join(rows, "\n")
}

// padLines pads or cuts lines to height, and each line to width when width
// is positive.
func padLines(lines []string, width, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	if width > 0 {
		for i, l := range lines {
			lines[i] = padRight(l, width)
		}
	}
	return strings.Join(lines, "\n")
}

func fitHeight(s string, height int) string {
	return padLines(strings.Split(s, "\n"), 0, height)
}

// window returns the visible slice bounds that keep cursor on screen.
func window(cursor, total, visible int) (int, int) {
	if visible <= 0 || total <= visible {
		return 0, total
	}
	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	return start, min(total, start+visible)
}

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width || width <= 1 {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
