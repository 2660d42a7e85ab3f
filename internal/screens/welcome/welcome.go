package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	sproutAt     = 500 * time.Millisecond
	bloomAt      = 1500 * time.Millisecond
	totalDur     = 4500 * time.Millisecond
)

// Growth stages, all seven lines tall so the layout does not jump.
var stages = [...]string{
	`



        .
      ▁▂▃▂▁
     ▔▔▔▔▔▔▔`,
	`


        ╻
       ╲┃╱
      ▁▂┃▂▁
     ▔▔▔▔▔▔▔`,
	`      ╲ │ ╱
    ── (◉ ◉) ──
       ( ▽ )
    ╭───┴─┴───╮
    │  ♻ ♻ ♻  │
    ╰─────────╯
      ▔▔▔▔▔▔`,
}

// orbit is the path the falling leaf follows around the grown mascot,
// as (line, column) pairs relative to the art.
var orbit = [][2]int{{0, 16}, {2, 18}, {4, 17}, {6, 14}, {6, 0}, {4, 0}, {2, 1}, {0, 2}}

type tickMsg time.Time

// WelcomeScreen grows a seedling into the mascot before handing over to
// the next screen, which is the login form or the dashboard of a restored
// session.
type WelcomeScreen struct {
	next         func() screen.Screen
	elapsed      time.Duration
	tickCount    int
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen that will transition to the screen produced by next.
func New(next func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{next: next}
}

func (w *WelcomeScreen) Title() string { return "" }

func (w *WelcomeScreen) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.elapsed < totalDur {
			w.elapsed += tickInterval
		}
		w.tickCount++
		return w, tick()

	case tea.KeyPressMsg:
		return w, w.transition()
	}
	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	nextScreen := w.next()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: nextScreen}
	}
}

// stage returns the growth stage index for the elapsed time.
func (w *WelcomeScreen) stage() int {
	switch {
	case w.elapsed < sproutAt:
		return 0
	case w.elapsed < bloomAt:
		return 1
	default:
		return 2
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	art := stages[w.stage()]
	if w.stage() == len(stages)-1 {
		art = placeLeaf(art, orbit[w.tickCount%len(orbit)])
	}

	sections := []string{lipgloss.NewStyle().Foreground(theme.Primary).Render(art)}

	if w.elapsed >= bloomAt {
		sections = append(sections,
			"",
			RenderBanner(width),
			"",
			lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Render("Watch. Learn. Act for the planet."),
			"",
			lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true).Render("press any key to continue"),
		)
	} else {
		sections = append(sections, "", theme.Hint.Render("growing..."))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.Join(sections, "\n"))
}

// placeLeaf draws a leaf at pos, padding the line when it is short.
func placeLeaf(art string, pos [2]int) string {
	lines := strings.Split(art, "\n")
	row, col := pos[0], pos[1]
	if row >= len(lines) {
		return art
	}
	r := []rune(lines[row])
	for len(r) <= col {
		r = append(r, ' ')
	}
	if r[col] == ' ' {
		r[col] = '❦'
	}
	lines[row] = string(r)
	return strings.Join(lines, "\n")
}
