package components

import (
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// ContentWidth is the inner width shared by the cards of a screen, kept
// between 20 and 60 columns.
func ContentWidth(frameWidth int) int {
	return max(20, min(frameWidth-6, 60))
}

// Frame draws the leafy double border around the dashboard.
func Frame(content string, width, height int) string {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Primary).
		Width(width - 2).
		Height(height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

// Card is a rounded box with centered content.
func Card(content string, cw int) string {
	return cardStyle(cw).Align(lipgloss.Center).Render(content)
}

// Panel is a Card for prose and question text, which reads better
// left-aligned. A non-empty title is drawn on the top line.
func Panel(title, content string, cw int) string {
	if title != "" {
		content = lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(title) + "\n\n" + content
	}
	return cardStyle(cw).Align(lipgloss.Left).Render(content)
}

func cardStyle(cw int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Width(cw-2).
		Padding(1, 2)
}
