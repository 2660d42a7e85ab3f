package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// ChoiceLabels are the option letters, one per supported option.
var ChoiceLabels = []string{"A", "B", "C", "D", "E", "F"}

// MultiChoice renders a multiple-choice question. The cursor moves freely
// until Locked; once Revealed the correct and chosen options are coloured.
type MultiChoice struct {
	Question string
	Options  []string
	Cursor   int

	// Chosen is the committed option, or -1.
	Chosen int

	// Correct is the right option, used only when Revealed.
	Correct  int
	Locked   bool
	Revealed bool
}

// NewMultiChoice creates a new multiple-choice component.
func NewMultiChoice(question string, options []string) MultiChoice {
	return MultiChoice{
		Question: question,
		Options:  options,
		Chosen:   -1,
		Correct:  -1,
	}
}

// Init returns nil.
func (m MultiChoice) Init() tea.Cmd {
	return nil
}

// Update moves the cursor. Letter keys jump straight to an option.
// Selection is left to the owner, which reads Cursor on enter.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.Locked {
		return m, nil
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Options)-1 {
			m.Cursor++
		}
	default:
		if i := optionForKey(key); i >= 0 && i < len(m.Options) {
			m.Cursor = i
		}
	}

	return m, nil
}

func optionForKey(key string) int {
	if len(key) != 1 {
		return -1
	}
	for i, l := range ChoiceLabels {
		if strings.EqualFold(key, l) {
			return i
		}
	}
	return -1
}

// View renders the multiple-choice component.
func (m MultiChoice) View() string {
	questionStyle := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	s := questionStyle.Render(m.Question) + "\n\n"

	for i, opt := range m.Options {
		label := "?"
		if i < len(ChoiceLabels) {
			label = ChoiceLabels[i]
		}
		prefix := "  "
		if i == m.Cursor && !m.Locked {
			prefix = "▸ "
		}
		mark := " "
		if i == m.Chosen {
			mark = "●"
		}

		line := fmt.Sprintf("%s%s %s)  %s", prefix, mark, label, opt)

		switch {
		case m.Revealed && i == m.Correct:
			s += lipgloss.NewStyle().Foreground(theme.Success).Bold(true).Render(line+"  ✓") + "\n"
		case m.Revealed && i == m.Chosen:
			s += lipgloss.NewStyle().Foreground(theme.Error).Bold(true).Render(line+"  ✗") + "\n"
		case m.Revealed || m.Locked:
			s += lipgloss.NewStyle().Foreground(theme.TextDim).Render(line) + "\n"
		case i == m.Cursor:
			s += lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(line) + "\n"
		case i == m.Chosen:
			s += lipgloss.NewStyle().Foreground(theme.Secondary).Render(line) + "\n"
		default:
			s += lipgloss.NewStyle().Foreground(theme.Text).Render(line) + "\n"
		}
	}

	return s
}

// IsCorrect returns true if the committed option is the correct one.
func (m MultiChoice) IsCorrect() bool {
	return m.Revealed && m.Chosen >= 0 && m.Chosen == m.Correct
}
