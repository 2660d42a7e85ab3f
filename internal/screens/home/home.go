package home

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/account"
	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/screens/challenges"
	"github.com/ecoloop/ecoloop/internal/screens/community"
	"github.com/ecoloop/ecoloop/internal/screens/history"
	"github.com/ecoloop/ecoloop/internal/screens/leaderboard"
	"github.com/ecoloop/ecoloop/internal/screens/level"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
)

type dashboardLoadedMsg struct {
	dash account.Dashboard
	err  error
}

// HomeScreen is the learner dashboard: stats, the level path and the way
// to the other screens.
type HomeScreen struct {
	deps     screens.Deps
	dash     account.Dashboard
	haveDash bool
	menu     components.Menu

	loading bool
	spinner spinner.Model
	notice  string
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.KeyHintProvider = (*HomeScreen)(nil)
var _ screen.Resumer = (*HomeScreen)(nil)

// New creates a HomeScreen showing the cached dashboard, if any, until the
// fresh one arrives.
func New(deps screens.Deps) *HomeScreen {
	h := &HomeScreen{
		deps:    deps.WithDefaults(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	if dash, ok := h.deps.Account.CachedDashboard(context.Background()); ok {
		h.setDashboard(dash)
	}
	return h
}

func (h *HomeScreen) Init() tea.Cmd {
	return h.refresh()
}

// Resume reloads the dashboard after a level or challenge may have changed
// the learner's progress.
func (h *HomeScreen) Resume() tea.Cmd {
	return h.refresh()
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Select"},
		{Key: "Enter", Description: "Play"},
		{Key: "c", Description: "Challenges"},
		{Key: "l", Description: "Leaders"},
		{Key: "e", Description: "Events"},
		{Key: "a", Description: "Activity"},
		{Key: "r", Description: "Refresh"},
		{Key: "o", Description: "Log out"},
		{Key: "q", Description: "Quit"},
	}
}

func (h *HomeScreen) refresh() tea.Cmd {
	if h.loading {
		return nil
	}
	h.loading = true
	acct := h.deps.Account
	load := screens.Call(context.Background(), h.deps.RequestTimeout, acct.LoadDashboard,
		func(d account.Dashboard, err error) tea.Msg { return dashboardLoadedMsg{dash: d, err: err} })
	return tea.Batch(load, h.spinner.Tick)
}

func (h *HomeScreen) setDashboard(dash account.Dashboard) {
	selected := h.menu.Selected
	h.dash = dash
	h.haveDash = true

	items := make([]components.MenuItem, 0, len(dash.Levels))
	for i, lvl := range dash.Levels {
		lvl := lvl
		status := dash.StatusOf(lvl.ID)
		item := components.MenuItem{
			Label:    fmt.Sprintf("%s %d. %s", statusIcon(status), i+1, lvl.Title),
			Disabled: status == api.StatusLocked,
		}
		switch status {
		case api.StatusCompleted:
			item.Hint = "completed"
		case api.StatusUnlocked:
			item.Hint = fmt.Sprintf("+%d XP", lvl.XPReward)
		default:
			item.Hint = "locked"
		}
		item.Action = func() tea.Cmd {
			next := level.New(h.deps, lvl)
			return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		}
		items = append(items, item)
	}
	h.menu = components.NewMenu(items)
	if selected > 0 && selected < len(items) && !items[selected].Disabled {
		h.menu.Selected = selected
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		h.loading = false
		if msg.err != nil {
			h.deps.Log.Warn("load dashboard failed", "error", msg.err)
			if api.IsAuth(msg.err) {
				return h, nil
			}
			h.notice = screens.ErrorText(msg.err)
			if h.haveDash {
				h.notice = "Offline, showing saved levels. " + h.notice
			}
			return h, nil
		}
		h.notice = ""
		h.setDashboard(msg.dash)
		return h, nil

	case spinner.TickMsg:
		if !h.loading {
			return h, nil
		}
		var cmd tea.Cmd
		h.spinner, cmd = h.spinner.Update(msg)
		return h, cmd

	case tea.KeyPressMsg:
		switch msg.String() {
		case "c":
			next := challenges.New(h.deps)
			return h, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		case "l":
			next := leaderboard.New(h.deps)
			return h, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		case "e":
			next := community.New(h.deps)
			return h, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		case "a":
			next := history.New(h.deps.Events)
			return h, func() tea.Msg { return router.PushScreenMsg{Screen: next} }
		case "r":
			return h, h.refresh()
		case "o":
			acct := h.deps.Account
			log := h.deps.Log
			return h, func() tea.Msg {
				if err := acct.Logout(context.Background()); err != nil {
					log.Warn("logout failed", "error", err)
				}
				return screen.LoggedOutMsg{}
			}
		case "q":
			return h, tea.Quit
		}
	}

	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

// Dashboard returns the dashboard on screen.
func (h *HomeScreen) Dashboard() (account.Dashboard, bool) {
	return h.dash, h.haveDash
}

func (h *HomeScreen) mascot() MascotVariant {
	if h.notice != "" {
		return MascotAlert
	}
	if !h.haveDash || len(h.dash.Levels) == 0 {
		return MascotIdle
	}
	for _, lvl := range h.dash.Levels {
		if h.dash.StatusOf(lvl.ID) != api.StatusCompleted {
			return MascotIdle
		}
	}
	return MascotCelebrating
}

func (h *HomeScreen) View(width, height int) string {
	// height is the content area; estimate full terminal height
	// by adding back header (3) + footer (3) + frame gaps
	termHeight := height + 8
	compact := termHeight < 34 || width < 100

	cw := components.ContentWidth(width)

	var sections []string
	sections = append(sections, renderTitle(cw, compact))

	if !compact {
		sections = append(sections, renderMascotBox(h.mascot(), cw))
	}

	user := h.dash.User
	if !h.haveDash {
		user, _ = h.deps.Account.User()
	}
	completed := 0
	for _, lvl := range h.dash.Levels {
		if h.dash.StatusOf(lvl.ID) == api.StatusCompleted {
			completed++
		}
	}
	sections = append(sections, renderStatsBar(user, completed, len(h.dash.Levels), cw, compact))

	switch {
	case h.haveDash:
		sections = append(sections, renderLevels(h.menu, cw))
	case h.loading:
		sections = append(sections, renderNotice(h.spinner.View()+" Loading levels...", cw))
	}

	if h.notice != "" {
		sections = append(sections, renderNotice(h.notice, cw))
	} else if h.loading && h.haveDash {
		sections = append(sections, renderNotice(h.spinner.View()+" Syncing...", cw))
	}

	return components.Frame(strings.Join(sections, "\n\n"), width, height)
}
