package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/screens/home"
	"github.com/ecoloop/ecoloop/internal/screens/login"
	"github.com/ecoloop/ecoloop/internal/screens/welcome"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
)

// Options configures the TUI.
type Options struct {
	Deps screens.Deps

	// SkipWelcome starts directly on the login or home screen.
	SkipWelcome bool
}

// logoutNotifier is implemented by account providers that end the session
// on their own, e.g. after a 401.
type logoutNotifier interface {
	OnLogout(fn func())
}

// refresher is implemented by account providers that can re-fetch the
// user record.
type refresher interface {
	Refresh(ctx context.Context) (api.User, error)
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	deps   screens.Deps
	router *router.Router
	width  int
	height int
}

// newAppModel creates a new AppModel starting on the welcome screen.
func newAppModel(opts Options) AppModel {
	m := AppModel{deps: opts.Deps.WithDefaults()}
	first := m.entry()
	if !opts.SkipWelcome {
		first = welcome.New(m.entry)
	}
	m.router = router.New(first)
	return m
}

// entry returns the screen the learner lands on: home when signed in,
// the login form otherwise.
func (m AppModel) entry() screen.Screen {
	if m.deps.Account.LoggedIn() {
		return m.home()
	}
	return m.login()
}

func (m AppModel) home() screen.Screen {
	return home.New(m.deps)
}

func (m AppModel) login() screen.Screen {
	return login.New(m.deps, m.home)
}

func (m AppModel) Init() tea.Cmd {
	return m.router.Active().Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case screen.LoggedOutMsg:
		if _, ok := m.router.Active().(*login.LoginScreen); ok && m.router.Depth() == 1 {
			return m, nil
		}
		m.deps.Log.Info("session ended, returning to login")
		return m, m.router.Reset(m.login())

	case screen.UserUpdatedMsg:
		r, ok := m.deps.Account.(refresher)
		if !ok {
			return m, nil
		}
		log := m.deps.Log
		timeout := m.deps.RequestTimeout
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if _, err := r.Refresh(ctx); err != nil {
				log.Warn("refresh user failed", "error", err)
			}
			return nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	var stats *layout.HeaderStats
	if u, ok := m.deps.Account.User(); ok {
		stats = &layout.HeaderStats{Coins: u.Coins, Streak: u.Streak}
	}
	header := layout.RenderHeader(title, stats, m.width)

	var footerHints []layout.KeyHint
	if p, ok := active.(screen.KeyHintProvider); ok {
		footerHints = p.KeyHints()
	}
	footerHints = append(footerHints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))

	// The hook fires from command goroutines and from Update itself, so
	// the message is sent asynchronously.
	if n, ok := opts.Deps.Account.(logoutNotifier); ok {
		n.OnLogout(func() { go p.Send(screen.LoggedOutMsg{}) })
	}

	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
