package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// TextInput wraps bubbles/textinput with EcoLoop styling.
type TextInput struct {
	Model    textinput.Model
	Label    string
	MaxWidth int
	errMsg   string
}

// NewTextInput creates a new styled text input.
func NewTextInput(label, placeholder string, maxWidth int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder

	if maxWidth > 0 {
		ti.CharLimit = maxWidth
	}

	return TextInput{
		Model:    ti,
		Label:    label,
		MaxWidth: maxWidth,
	}
}

// NewPasswordInput creates a text input that masks what is typed.
func NewPasswordInput(label, placeholder string, maxWidth int) TextInput {
	t := NewTextInput(label, placeholder, maxWidth)
	t.Model.EchoMode = textinput.EchoPassword
	t.Model.EchoCharacter = '•'
	return t
}

// Init returns the initial command.
func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Focus focuses the input.
func (t *TextInput) Focus() tea.Cmd {
	return t.Model.Focus()
}

// Blur removes focus.
func (t *TextInput) Blur() {
	t.Model.Blur()
}

// Update handles messages. Typing clears a previous error.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		t.errMsg = ""
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the label, the input and any field error.
func (t TextInput) View() string {
	var b strings.Builder
	if t.Label != "" {
		style := lipgloss.NewStyle().Foreground(theme.TextDim)
		if t.Model.Focused() {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(style.Render(t.Label) + "\n")
	}
	b.WriteString(t.Model.View())
	if t.errMsg != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(theme.Error).Render("✗ "+t.errMsg))
	}
	return b.String()
}

// Value returns the trimmed input value.
func (t TextInput) Value() string {
	return strings.TrimSpace(t.Model.Value())
}

// SetError attaches a field error shown under the input.
func (t *TextInput) SetError(msg string) {
	t.errMsg = msg
}

// Error returns the field error, if any.
func (t TextInput) Error() string {
	return t.errMsg
}

// Reset clears the value and error.
func (t *TextInput) Reset() {
	t.Model.SetValue("")
	t.errMsg = ""
}
