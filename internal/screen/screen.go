package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/ui/layout"
)

// Screen defines the interface for all application screens.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// Resumer is implemented by screens that refresh when they become active
// again after the screen above them is popped.
type Resumer interface {
	Resume() tea.Cmd
}

// Closer is implemented by screens that hold resources, such as in-flight
// requests, to release when they leave the stack.
type Closer interface {
	Close()
}

// LoggedOutMsg is broadcast when the session ends, e.g. after a 401.
type LoggedOutMsg struct{}

// UserUpdatedMsg is sent after the user record changed so the header can
// show the new balance.
type UserUpdatedMsg struct{}
