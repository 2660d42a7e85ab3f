// Package community lists local sustainability events from the backend.
package community

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// visible is how many events fit on screen at once.
const visible = 3

type loadedMsg struct {
	posts []api.CommunityPost
	err   error
}

// CommunityScreen is a read-only event feed.
type CommunityScreen struct {
	deps    screens.Deps
	posts   []api.CommunityPost
	cursor  int
	loaded  bool
	loading bool
	errMsg  string
	spinner spinner.Model
}

var _ screen.Screen = (*CommunityScreen)(nil)
var _ screen.KeyHintProvider = (*CommunityScreen)(nil)

// New creates a CommunityScreen.
func New(deps screens.Deps) *CommunityScreen {
	return &CommunityScreen{
		deps:    deps.WithDefaults(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *CommunityScreen) Init() tea.Cmd { return s.load() }

func (s *CommunityScreen) Title() string { return "Community" }

func (s *CommunityScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Browse"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *CommunityScreen) load() tea.Cmd {
	if s.loading {
		return nil
	}
	s.loading = true
	s.errMsg = ""
	fetch := screens.Call(context.Background(), s.deps.RequestTimeout,
		s.deps.Backend.CommunityFeed,
		func(p []api.CommunityPost, err error) tea.Msg { return loadedMsg{posts: p, err: err} })
	return tea.Batch(fetch, s.spinner.Tick)
}

func (s *CommunityScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = screens.ErrorText(msg.err)
			return s, nil
		}
		s.posts = msg.posts
		s.cursor = min(s.cursor, max(len(s.posts)-1, 0))
		s.loaded = true
		return s, nil

	case spinner.TickMsg:
		if !s.loading {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "r":
			return s, s.load()
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.posts)-1 {
				s.cursor++
			}
		}
	}
	return s, nil
}

func (s *CommunityScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	center := func(text string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, text)
	}
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("COMMUNITY EVENTS")))
	b.WriteString("\n\n")

	switch {
	case s.errMsg != "":
		b.WriteString(center(theme.ErrorText.Render(s.errMsg)))
		b.WriteString("\n")
		b.WriteString(center(dim.Render("Press r to try again.")))
		return b.String()
	case s.loading && !s.loaded:
		b.WriteString(center(dim.Render(s.spinner.View() + " Loading events...")))
		return b.String()
	case len(s.posts) == 0:
		b.WriteString(center(dim.Italic(true).Render("No events found nearby. Check back later!")))
		return b.String()
	}

	first := max(0, min(s.cursor-visible/2, len(s.posts)-visible))
	last := min(first+visible, len(s.posts))
	for i := first; i < last; i++ {
		b.WriteString(center(s.renderPost(s.posts[i], i == s.cursor, cw)))
		b.WriteString("\n")
	}
	b.WriteString(center(dim.Render(positionLabel(s.cursor, len(s.posts)))))
	return b.String()
}

func (s *CommunityScreen) renderPost(p api.CommunityPost, selected bool, cw int) string {
	head := lipgloss.NewStyle().Foreground(categoryColor(p.Category)).Bold(true).Render(strings.ToUpper(p.Category))
	if t, ok := p.Created(); ok {
		head += "  " + theme.Hint.Render(t.Format("Jan 2, 2006"))
	}

	lines := []string{
		head,
		lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render(p.Title),
		lipgloss.NewStyle().Foreground(theme.TextDim).Render(p.Description),
	}
	var foot []string
	if p.Location != "" {
		foot = append(foot, "⌖ "+p.Location)
	}
	if selected && p.ExternalLink != "" {
		foot = append(foot, p.ExternalLink)
	}
	if len(foot) > 0 {
		lines = append(lines, theme.Hint.Render(strings.Join(foot, "   ")))
	}

	card := components.Panel("", strings.Join(lines, "\n"), cw)
	marker := "  "
	if selected {
		marker = lipgloss.NewStyle().Foreground(theme.Primary).Render("▸ ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, marker, card)
}

func categoryColor(category string) color.Color {
	switch strings.ToLower(category) {
	case "energy":
		return theme.ArcadeYellow
	case "waste":
		return theme.Accent
	default:
		return theme.Primary
	}
}

func positionLabel(cursor, n int) string {
	return fmt.Sprintf("%d of %d", cursor+1, n)
}
