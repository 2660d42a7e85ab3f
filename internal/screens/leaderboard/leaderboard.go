// Package leaderboard ranks learners by coins.
package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

type loadedMsg struct {
	entries []api.LeaderboardEntry
	err     error
}

// LeaderboardScreen shows the top learners.
type LeaderboardScreen struct {
	deps    screens.Deps
	entries []api.LeaderboardEntry
	loaded  bool
	loading bool
	errMsg  string
	spinner spinner.Model
}

var _ screen.Screen = (*LeaderboardScreen)(nil)
var _ screen.KeyHintProvider = (*LeaderboardScreen)(nil)

// New creates a new LeaderboardScreen.
func New(deps screens.Deps) *LeaderboardScreen {
	return &LeaderboardScreen{
		deps:    deps.WithDefaults(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *LeaderboardScreen) Init() tea.Cmd {
	return s.load()
}

func (s *LeaderboardScreen) load() tea.Cmd {
	if s.loading {
		return nil
	}
	s.loading = true
	s.errMsg = ""
	backend := s.deps.Backend
	fetch := screens.Call(context.Background(), s.deps.RequestTimeout,
		backend.Leaderboard,
		func(e []api.LeaderboardEntry, err error) tea.Msg { return loadedMsg{entries: e, err: err} })
	return tea.Batch(fetch, s.spinner.Tick)
}

func (s *LeaderboardScreen) Title() string {
	return "Leaderboard"
}

func (s *LeaderboardScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *LeaderboardScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = screens.ErrorText(msg.err)
			return s, nil
		}
		s.entries = msg.entries
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
		}
	}
	return s, nil
}

func (s *LeaderboardScreen) View(width, height int) string {
	center := func(st lipgloss.Style, text string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, st.Render(text))
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true), "TOP ECO HEROES"))
	b.WriteString("\n\n")

	switch {
	case s.errMsg != "":
		b.WriteString(center(theme.ErrorText, s.errMsg))
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim), "Press r to try again."))
		return b.String()
	case s.loading && !s.loaded:
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim), s.spinner.View()+" Loading..."))
		return b.String()
	case len(s.entries) == 0:
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true),
			"No one on the board yet. Finish a level to get there first!"))
		return b.String()
	}

	me := ""
	if u, ok := s.deps.Account.User(); ok {
		me = u.Username
	}

	header := fmt.Sprintf("%-6s %-20s %10s %8s", "RANK", "NAME", "COINS", "STREAK")
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim), header))
	b.WriteString("\n")

	for i, e := range s.entries {
		row := fmt.Sprintf("%-6s %-20s %10s %8s",
			humanize.Ordinal(i+1), truncate(e.Username, 20), humanize.Comma(int64(e.Coins)), fmt.Sprintf("%dd", e.Streak))
		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case e.Username == me:
			style = style.Foreground(theme.Primary).Bold(true)
		case i < 3:
			style = style.Foreground(theme.ArcadeYellow)
		}
		b.WriteString(center(style, row))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
