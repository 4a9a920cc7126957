package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// lineInput is a single-line text field.
type lineInput struct {
	value  []rune
	cursor int
}

func newLineInput(initial string) lineInput {
	r := []rune(initial)
	return lineInput{value: r, cursor: len(r)}
}

func (in lineInput) String() string { return string(in.value) }

// Value returns the trimmed text.
func (in lineInput) Value() string { return strings.TrimSpace(string(in.value)) }

// handle applies an editing key and reports whether it was consumed.
func (in *lineInput) handle(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		in.insert(msg.Runes)
	case tea.KeySpace:
		in.insert([]rune{' '})
	case tea.KeyBackspace:
		if in.cursor > 0 {
			in.value = append(in.value[:in.cursor-1], in.value[in.cursor:]...)
			in.cursor--
		}
	case tea.KeyDelete:
		if in.cursor < len(in.value) {
			in.value = append(in.value[:in.cursor], in.value[in.cursor+1:]...)
		}
	case tea.KeyLeft:
		if in.cursor > 0 {
			in.cursor--
		}
	case tea.KeyRight:
		if in.cursor < len(in.value) {
			in.cursor++
		}
	case tea.KeyHome, tea.KeyCtrlA:
		in.cursor = 0
	case tea.KeyEnd, tea.KeyCtrlE:
		in.cursor = len(in.value)
	case tea.KeyCtrlU:
		in.value = in.value[:0]
		in.cursor = 0
	default:
		return false
	}
	return true
}

func (in *lineInput) insert(r []rune) {
	next := make([]rune, 0, len(in.value)+len(r))
	next = append(next, in.value[:in.cursor]...)
	next = append(next, r...)
	next = append(next, in.value[in.cursor:]...)
	in.value = next
	in.cursor += len(r)
}

// render draws the text with a block cursor.
func (in lineInput) render() string {
	before := string(in.value[:in.cursor])
	after := ""
	if in.cursor < len(in.value) {
		after = string(in.value[in.cursor+1:])
		return before + "[" + string(in.value[in.cursor]) + "]" + after
	}
	return before + "▌"
}
