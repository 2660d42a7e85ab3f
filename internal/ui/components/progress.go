package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// ProgressBar displays a horizontal progress bar.
type ProgressBar struct {
	Label       string
	Percent     float64
	ShowPercent bool
	Width       int
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(label string, percent float64, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Percent:     percent,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // " 100%"
	}

	barWidth := p.Width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := clampCells(int(float64(barWidth)*p.Percent), barWidth)
	empty := barWidth - filled

	filledStr := lipgloss.NewStyle().
		Background(theme.Secondary).
		Render(strings.Repeat(" ", filled))

	emptyStr := lipgloss.NewStyle().
		Background(theme.Border).
		Render(strings.Repeat(" ", empty))

	result += filledStr + emptyStr

	if p.ShowPercent {
		result += lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf("  %d%%", int(p.Percent*100)))
	}

	return result
}

// SegmentBar draws the video timeline split into segments. Passed segments
// are green, the current one fills with the playhead and later ones are
// dim.
type SegmentBar struct {
	Count    int
	Current  int
	Position float64 // 0..1 over the whole video
	Width    int
}

// View renders the segment bar followed by a segment counter.
func (b SegmentBar) View() string {
	if b.Count <= 0 {
		return ""
	}
	counter := fmt.Sprintf("  %d/%d", min(b.Current+1, b.Count), b.Count)
	avail := b.Width - lipgloss.Width(counter) - (b.Count - 1)
	if avail < b.Count {
		avail = b.Count
	}
	cell := avail / b.Count

	parts := make([]string, 0, b.Count)
	for i := 0; i < b.Count; i++ {
		switch {
		case i < b.Current:
			parts = append(parts, lipgloss.NewStyle().Background(theme.Success).Render(strings.Repeat(" ", cell)))
		case i == b.Current:
			start := float64(i) / float64(b.Count)
			within := (b.Position - start) * float64(b.Count)
			filled := clampCells(int(within*float64(cell)), cell)
			parts = append(parts,
				lipgloss.NewStyle().Background(theme.Secondary).Render(strings.Repeat(" ", filled))+
					lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", cell-filled)))
		default:
			parts = append(parts, lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", cell)))
		}
	}
	return strings.Join(parts, " ") + lipgloss.NewStyle().Foreground(theme.TextDim).Render(counter)
}

func clampCells(n, max int) int {
	if n > max {
		return max
	}
	if n < 0 {
		return 0
	}
	return n
}
