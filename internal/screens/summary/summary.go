package summary

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/session"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// SummaryScreen displays the level summary.
type SummaryScreen struct {
	summary *session.SessionSummary
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(summary *session.SessionSummary) *SummaryScreen {
	return &SummaryScreen{summary: summary}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Level Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Continue"},
		{Key: "Esc", Description: "Home"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			// The summary replaced the level screen, so one pop returns home.
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	sum := s.summary
	if sum == nil {
		return ""
	}

	center := func(st lipgloss.Style, text string) string {
		return st.Width(width).Align(lipgloss.Center).Render(text)
	}

	var b strings.Builder

	heading := "Level complete!"
	headingColor := color.Color(theme.Primary)
	if !sum.Completed {
		heading = "Level paused"
		headingColor = theme.Accent
	}
	b.WriteString(center(lipgloss.NewStyle().Foreground(headingColor).Bold(true), heading))
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text), sum.LevelTitle))
	b.WriteString("\n\n")

	mins := int(sum.Duration.Minutes())
	secs := int(sum.Duration.Seconds()) % 60
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim),
		fmt.Sprintf("Time: %d:%02d    Reached: %s", mins, secs, sum.Phase)))
	b.WriteString("\n\n")

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(
		strings.Repeat("─", min(width-8, 60)))

	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("Video")))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text), fmt.Sprintf(
		"Segments: %d/%d    Answers: %d/%d correct (%.0f%%)    Rewinds: %d",
		sum.SegmentsPassed, sum.SegmentCount, sum.QuizCorrect, sum.QuizAnswers,
		sum.Accuracy*100, sum.Restarts)))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.TextDim).Render("Practice & Task")))
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text), fmt.Sprintf(
		"Quiz retries: %d    Proof uploads: %d", sum.PracticeAttempts, sum.ProofAttempts)))
	b.WriteString("\n\n")

	if sum.CoinsEarned > 0 || sum.XPEarned > 0 {
		reward := fmt.Sprintf("+%s coins    +%s XP",
			humanize.Comma(int64(sum.CoinsEarned)), humanize.Comma(int64(sum.XPEarned)))
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Accent).Bold(true), reward))
		b.WriteString("\n")
	}
	if sum.NewCoinBalance != nil {
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim),
			"Balance: "+humanize.Comma(int64(*sum.NewCoinBalance))+" coins"))
		b.WriteString("\n")
	}

	return b.String()
}
