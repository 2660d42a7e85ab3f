// Package challenges lists the daily and weekly side quests and completes
// them with a proof upload.
package challenges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/proof"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

type loadedMsg struct {
	list []api.Challenge
	err  error
}

type completedMsg struct {
	id     int
	result api.ChallengeCompletion
	file   proof.File
	err    error
}

type completion struct {
	result api.ChallengeCompletion
	file   proof.File
}

// ChallengesScreen shows the challenge list and the proof form of the
// selected challenge.
type ChallengesScreen struct {
	deps   screens.Deps
	ctx    context.Context
	cancel context.CancelFunc

	list     []api.Challenge
	selected int
	loaded   bool
	loading  bool
	errMsg   string

	proving bool
	busy    bool
	input   components.TextInput
	result  string
	spinner spinner.Model
}

var _ screen.Screen = (*ChallengesScreen)(nil)
var _ screen.KeyHintProvider = (*ChallengesScreen)(nil)
var _ screen.Closer = (*ChallengesScreen)(nil)

// New creates a new ChallengesScreen.
func New(deps screens.Deps) *ChallengesScreen {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChallengesScreen{
		deps:    deps.WithDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		input:   components.NewTextInput("Proof file", "path to a photo or short video", 1024),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *ChallengesScreen) Init() tea.Cmd {
	return s.load()
}

// Close cancels a running load or upload.
func (s *ChallengesScreen) Close() {
	s.cancel()
}

func (s *ChallengesScreen) Title() string {
	return "Challenges"
}

func (s *ChallengesScreen) KeyHints() []layout.KeyHint {
	if s.proving {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Upload proof"},
			{Key: "Esc", Description: "Cancel"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Select"},
		{Key: "Enter", Description: "Complete"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ChallengesScreen) load() tea.Cmd {
	if s.loading {
		return nil
	}
	s.loading = true
	s.errMsg = ""
	backend := s.deps.Backend
	fetch := screens.Call(s.ctx, s.deps.RequestTimeout, backend.Challenges,
		func(list []api.Challenge, err error) tea.Msg { return loadedMsg{list: list, err: err} })
	return tea.Batch(fetch, s.spinner.Tick)
}

// Selected returns the highlighted challenge.
func (s *ChallengesScreen) Selected() (api.Challenge, bool) {
	if s.selected < 0 || s.selected >= len(s.list) {
		return api.Challenge{}, false
	}
	return s.list[s.selected], true
}

func (s *ChallengesScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		s.loading = false
		if msg.err != nil {
			s.errMsg = screens.ErrorText(msg.err)
			return s, nil
		}
		s.list = msg.list
		s.loaded = true
		s.selected = min(s.selected, max(len(s.list)-1, 0))
		return s, nil

	case completedMsg:
		return s, s.onCompleted(msg)

	case spinner.TickMsg:
		if !s.loading && !s.busy {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyPressMsg:
		if s.proving {
			return s, s.proofKey(msg)
		}
		return s, s.listKey(msg)
	}

	if s.proving {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *ChallengesScreen) listKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return func() tea.Msg { return router.PopScreenMsg{} }
	case "up", "k":
		if s.selected > 0 {
			s.selected--
		}
	case "down", "j":
		if s.selected < len(s.list)-1 {
			s.selected++
		}
	case "r":
		return s.load()
	case "enter":
		c, ok := s.Selected()
		if !ok {
			return nil
		}
		switch {
		case c.IsCompleted:
			s.result = "You already completed this challenge."
			return nil
		case !c.IsActive:
			s.result = "This challenge is not running right now."
			return nil
		}
		s.result = ""
		s.proving = true
		s.input.Reset()
		return s.input.Focus()
	}
	return nil
}

func (s *ChallengesScreen) proofKey(msg tea.KeyPressMsg) tea.Cmd {
	if s.busy {
		return nil
	}
	switch msg.String() {
	case "esc":
		s.proving = false
		s.input.Blur()
		return nil
	case "enter":
		return s.submit()
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *ChallengesScreen) submit() tea.Cmd {
	c, ok := s.Selected()
	if !ok {
		return nil
	}
	path := s.input.Value()
	if _, err := proof.Inspect(path); err != nil {
		s.input.SetError(screens.ErrorText(err))
		return nil
	}

	s.busy = true
	backend := s.deps.Backend
	upload := screens.Call(s.ctx, s.deps.RequestTimeout,
		func(ctx context.Context) (completion, error) {
			res, f, err := proof.SubmitChallenge(ctx, backend, c.ID, path)
			return completion{result: res, file: f}, err
		},
		func(r completion, err error) tea.Msg {
			return completedMsg{id: c.ID, result: r.result, file: r.file, err: err}
		})
	return tea.Batch(upload, s.spinner.Tick)
}

func (s *ChallengesScreen) onCompleted(msg completedMsg) tea.Cmd {
	s.busy = false
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		s.deps.Log.Warn("complete challenge failed", "challenge_id", msg.id, "error", msg.err)
		s.input.SetError(screens.ErrorText(msg.err))
		return nil
	}

	s.proving = false
	s.input.Blur()
	for i := range s.list {
		if s.list[i].ID == msg.id {
			s.list[i].IsCompleted = true
		}
	}

	res := msg.result
	parts := []string{}
	if res.Message != "" {
		parts = append(parts, res.Message)
	} else {
		parts = append(parts, "Challenge complete!")
	}
	parts = append(parts, fmt.Sprintf("Balance: %s coins", humanize.Comma(int64(res.NewBalance))))
	if res.StreakIncremented {
		parts = append(parts, fmt.Sprintf("Streak: %d days", res.NewStreak))
	}
	s.result = strings.Join(parts, "  ")
	s.deps.Log.Info("challenge completed", "challenge_id", msg.id, "file", msg.file.Describe())
	return func() tea.Msg { return screen.UserUpdatedMsg{} }
}

func (s *ChallengesScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	center := func(text string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, text)
	}

	var b strings.Builder
	b.WriteString("\n")

	switch {
	case s.errMsg != "":
		b.WriteString(center(theme.ErrorText.Render(s.errMsg)))
		b.WriteString("\n")
		b.WriteString(center(theme.Hint.Render("Press r to try again.")))
		return b.String()
	case s.loading && !s.loaded:
		b.WriteString(center(theme.Hint.Render(s.spinner.View() + " Loading challenges...")))
		return b.String()
	case len(s.list) == 0:
		b.WriteString(center(theme.Hint.Render("No challenges right now. Check back tomorrow!")))
		return b.String()
	}

	for i, c := range s.list {
		b.WriteString(center(s.renderRow(c, i == s.selected)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if c, ok := s.Selected(); ok {
		detail := lipgloss.NewStyle().Foreground(theme.Text).Render(c.Description)
		if c.VerificationLabel != "" {
			detail += "\n" + theme.Hint.Render("Proof: "+c.VerificationLabel)
		}
		if s.proving {
			detail += "\n\n" + s.input.View()
			if s.busy {
				detail += "\n" + s.spinner.View() + " Checking your proof..."
			}
		}
		b.WriteString(center(components.Card(detail, cw)))
		b.WriteString("\n")
	}

	if s.result != "" {
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(s.result)))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *ChallengesScreen) renderRow(c api.Challenge, selected bool) string {
	icon := "○"
	switch {
	case c.IsCompleted:
		icon = "✓"
	case !c.IsActive:
		icon = "·"
	}
	line := fmt.Sprintf("%s %-7s %-32s +%s coins", icon, strings.ToUpper(string(c.Type)), c.Title,
		humanize.Comma(int64(c.CoinReward)))

	style := lipgloss.NewStyle().Foreground(theme.Text)
	switch {
	case c.IsCompleted || !c.IsActive:
		style = theme.Locked
	case selected:
		style = style.Foreground(theme.Primary).Bold(true)
	}
	if selected {
		line = "▸ " + line
	} else {
		line = "  " + line
	}
	return style.Render(line)
}
