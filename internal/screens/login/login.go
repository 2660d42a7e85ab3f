// Package login is the sign-in and sign-up form.
package login

import (
	"context"
	"errors"
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
	"github.com/ecoloop/ecoloop/internal/validation"
)

// Mode selects between logging in and creating an account.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

const (
	fieldUsername = iota
	fieldEmail
	fieldPassword
)

type authDoneMsg struct {
	user api.User
	err  error
}

// LoginScreen collects credentials and signs the learner in.
type LoginScreen struct {
	deps   screens.Deps
	home   func() screen.Screen
	mode   Mode
	inputs []components.TextInput
	focus  int

	spinner spinner.Model
	busy    bool
	errMsg  string
}

var _ screen.Screen = (*LoginScreen)(nil)
var _ screen.KeyHintProvider = (*LoginScreen)(nil)

// New creates the form. home builds the screen shown after a successful
// login.
func New(deps screens.Deps, home func() screen.Screen) *LoginScreen {
	inputs := []components.TextInput{
		components.NewTextInput("Username", "at least 3 characters", 64),
		components.NewTextInput("Email", "you@example.com", 128),
		components.NewPasswordInput("Password", "at least 6 characters", 128),
	}
	return &LoginScreen{
		deps:    deps.WithDefaults(),
		home:    home,
		inputs:  inputs,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (l *LoginScreen) Init() tea.Cmd {
	return l.inputs[fieldUsername].Focus()
}

func (l *LoginScreen) Title() string {
	if l.mode == ModeRegister {
		return "Create Account"
	}
	return "Log In"
}

func (l *LoginScreen) KeyHints() []layout.KeyHint {
	switch {
	case l.busy:
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	case l.mode == ModeRegister:
		return []layout.KeyHint{
			{Key: "Tab", Description: "Next field"},
			{Key: "Enter", Description: "Sign up"},
			{Key: "Ctrl+N", Description: "Have an account?"},
		}
	default:
		return []layout.KeyHint{
			{Key: "Tab", Description: "Next field"},
			{Key: "Enter", Description: "Log in"},
			{Key: "Ctrl+N", Description: "New here?"},
		}
	}
}

// Mode returns the active mode.
func (l *LoginScreen) Mode() Mode { return l.mode }

func (l *LoginScreen) fields() []int {
	if l.mode == ModeRegister {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldUsername, fieldPassword}
}

func (l *LoginScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		l.busy = false
		if msg.err != nil {
			l.errMsg = screens.ErrorText(msg.err)
			l.deps.Log.Warn("sign in failed", "mode", l.Title(), "error", msg.err)
			return l, l.focusField(fieldPassword)
		}
		l.deps.Log.Info("signed in", "username", msg.user.Username)
		next := l.home()
		return l, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }

	case spinner.TickMsg:
		if !l.busy {
			return l, nil
		}
		var cmd tea.Cmd
		l.spinner, cmd = l.spinner.Update(msg)
		return l, cmd

	case tea.KeyPressMsg:
		if l.busy {
			return l, nil
		}
		switch msg.String() {
		case "tab", "down":
			return l, l.moveFocus(1)
		case "shift+tab", "up":
			return l, l.moveFocus(-1)
		case "ctrl+n":
			return l, l.toggleMode()
		case "enter":
			fields := l.fields()
			if l.focus != fields[len(fields)-1] {
				return l, l.moveFocus(1)
			}
			return l, l.submit()
		}
	}

	var cmd tea.Cmd
	l.inputs[l.focus], cmd = l.inputs[l.focus].Update(msg)
	if _, ok := msg.(tea.KeyPressMsg); ok {
		l.errMsg = ""
	}
	return l, cmd
}

func (l *LoginScreen) toggleMode() tea.Cmd {
	if l.mode == ModeLogin {
		l.mode = ModeRegister
	} else {
		l.mode = ModeLogin
	}
	l.errMsg = ""
	for i := range l.inputs {
		l.inputs[i].SetError("")
	}
	return l.focusField(fieldUsername)
}

func (l *LoginScreen) moveFocus(delta int) tea.Cmd {
	fields := l.fields()
	pos := 0
	for i, f := range fields {
		if f == l.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(fields)) % len(fields)
	return l.focusField(fields[pos])
}

func (l *LoginScreen) focusField(f int) tea.Cmd {
	for i := range l.inputs {
		l.inputs[i].Blur()
	}
	l.focus = f
	return l.inputs[f].Focus()
}

// submit validates locally and only then calls the backend.
func (l *LoginScreen) submit() tea.Cmd {
	username := l.inputs[fieldUsername].Value()
	email := l.inputs[fieldEmail].Value()
	password := l.inputs[fieldPassword].Model.Value()

	var payload any = api.Credentials{Username: username, Password: password}
	if l.mode == ModeRegister {
		payload = api.Registration{Username: username, Email: email, Password: password}
	}
	if err := validation.Struct(payload); err != nil {
		l.showValidation(err)
		return nil
	}

	l.busy = true
	l.errMsg = ""
	acct := l.deps.Account
	mode := l.mode
	call := screens.Call(context.Background(), l.deps.RequestTimeout,
		func(ctx context.Context) (api.User, error) {
			if mode == ModeRegister {
				return acct.Register(ctx, username, email, password)
			}
			return acct.Login(ctx, username, password)
		},
		func(u api.User, err error) tea.Msg { return authDoneMsg{user: u, err: err} })
	return tea.Batch(call, l.spinner.Tick)
}

func (l *LoginScreen) showValidation(err error) {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		l.errMsg = err.Error()
		return
	}
	first := -1
	for _, fe := range verrs {
		f := fieldFor(fe.Field)
		if f < 0 {
			continue
		}
		l.inputs[f].SetError(fe.Message)
		if first < 0 {
			first = f
		}
	}
	if first >= 0 {
		l.focusField(first)
	}
}

func fieldFor(name string) int {
	switch name {
	case "username":
		return fieldUsername
	case "email":
		return fieldEmail
	case "password":
		return fieldPassword
	}
	return -1
}

func (l *LoginScreen) View(width, height int) string {
	cw := components.ContentWidth(width)

	var parts []string
	parts = append(parts, lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(l.Title()))
	parts = append(parts, "")
	for _, f := range l.fields() {
		parts = append(parts, l.inputs[f].View(), "")
	}

	switch {
	case l.busy:
		parts = append(parts, l.spinner.View()+" "+
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("Contacting server, the first request may take a while..."))
	case l.errMsg != "":
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.Error).Width(cw-6).Render(l.errMsg))
	}

	card := components.Card(strings.Join(parts, "\n"), cw)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}
