package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/screens/welcome"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

const arcadeTitleCompact = "E · C · O · L · O · O · P"

// renderTitle returns the styled title block or compact fallback.
func renderTitle(cw int, compact bool) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	title := strings.TrimPrefix(welcome.BannerArt, "\n")
	if compact || cw < lipgloss.Width(title) {
		title = arcadeTitleCompact
	}
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(style.Render(title))
}

// renderStatsBar renders the learner stats in a bordered box matching content width.
func renderStatsBar(user api.User, completed, total, cw int, compact bool) string {
	coinStyle := lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true)
	streakStyle := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	levelStyle := lipgloss.NewStyle().Foreground(theme.ArcadeCyan).Bold(true)

	var stats string
	if compact {
		stats = fmt.Sprintf("%s %s %s",
			coinStyle.Render(fmt.Sprintf("●%d", user.Coins)),
			streakStyle.Render(fmt.Sprintf("★%d", user.Streak)),
			levelStyle.Render(fmt.Sprintf("✓%d/%d", completed, total)),
		)
	} else {
		stats = fmt.Sprintf("%s  %s  %s",
			coinStyle.Render("● "+humanize.Comma(int64(user.Coins))+" COINS"),
			streakStyle.Render(fmt.Sprintf("★ %d DAY STREAK", user.Streak)),
			levelStyle.Render(fmt.Sprintf("✓ %d/%d LEVELS", completed, total)),
		)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.ArcadeCyan).
		Width(cw - 2). // account for border chars
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(stats)
}

// statusIcon returns the marker drawn before a level.
func statusIcon(s api.LevelStatus) string {
	switch s {
	case api.StatusCompleted:
		return lipgloss.NewStyle().Foreground(theme.Success).Render("✓")
	case api.StatusUnlocked:
		return lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Render("●")
	default:
		return theme.Locked.Render("■")
	}
}

// renderLevels renders the level menu inside a card.
func renderLevels(menu components.Menu, cw int) string {
	if len(menu.Items) == 0 {
		return components.Card(theme.Hint.Render("No levels yet. Press r to refresh."), cw)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Width(cw - 2).
		Padding(0, 1).
		Render(strings.TrimRight(menu.View(), "\n"))
}

// renderNotice renders a one-line status such as an offline warning.
func renderNotice(text string, cw int) string {
	return lipgloss.NewStyle().
		Foreground(theme.Accent).
		Width(cw).
		Align(lipgloss.Center).
		Render(text)
}

// renderMascotBox renders the mascot centered in a box matching content width.
func renderMascotBox(variant MascotVariant, cw int) string {
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(RenderMascot(variant))
}
