package components

import (
	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// Button is a styled button component.
type Button struct {
	Label   string
	Key     string
	Active  bool
	OnPress func() tea.Cmd
}

// NewButton creates a new button fired by key.
func NewButton(label, key string, active bool, onPress func() tea.Cmd) Button {
	return Button{
		Label:   label,
		Key:     key,
		Active:  active,
		OnPress: onPress,
	}
}

// Update fires OnPress when the button's key is pressed.
func (b Button) Update(msg tea.Msg) (Button, tea.Cmd) {
	if !b.Active {
		return b, nil
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok {
		if kmsg.String() == b.Key && b.OnPress != nil {
			return b, b.OnPress()
		}
	}

	return b, nil
}

// View renders the button.
func (b Button) View() string {
	label := "  ▸ " + b.Label + " "
	if b.Key != "" {
		label += "[" + b.Key + "] "
	}
	if b.Active {
		return theme.ButtonActive.Render(label)
	}
	return theme.ButtonInactive.Render(label)
}
