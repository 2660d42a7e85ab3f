// Package history shows the learner's local level activity.
package history

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/store"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

const (
	activityLimit = 50
	eventLimit    = 12
)

type historyLoadedMsg struct {
	Activity []store.LevelActivity
	Titles   map[int]string
	Err      error
}

type eventsLoadedMsg struct {
	LevelID int
	Events  []store.LevelEventRecord
	Err     error
}

// HistoryScreen lists the levels played on this machine and, on demand,
// the most recent events of one level.
type HistoryScreen struct {
	eventRepo store.EventRepo
	activity  []store.LevelActivity
	titles    map[int]string
	events    map[int][]store.LevelEventRecord
	selected  int
	expanded  map[int]bool
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(eventRepo store.EventRepo) *HistoryScreen {
	return &HistoryScreen{
		eventRepo: eventRepo,
		titles:    make(map[int]string),
		events:    make(map[int][]store.LevelEventRecord),
		expanded:  make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	repo := s.eventRepo
	if repo == nil {
		return func() tea.Msg { return historyLoadedMsg{} }
	}
	return func() tea.Msg {
		ctx := context.Background()

		activity, err := repo.LevelActivity(ctx, activityLimit)
		if err != nil {
			return historyLoadedMsg{Err: err}
		}

		// Level titles are only known from the session start events.
		titles := make(map[int]string)
		recent, err := repo.QueryLevelEvents(ctx, store.QueryOpts{Limit: 500})
		if err == nil {
			for _, ev := range recent {
				if ev.Kind != store.EventSessionStarted {
					continue
				}
				if t, ok := ev.Detail["title"].(string); ok && titles[ev.LevelID] == "" {
					titles[ev.LevelID] = t
				}
			}
		}
		return historyLoadedMsg{Activity: activity, Titles: titles}
	}
}

func (s *HistoryScreen) Title() string {
	return "Activity"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.activity = msg.Activity
			if msg.Titles != nil {
				s.titles = msg.Titles
			}
		}
		s.loaded = true
		return s, nil

	case eventsLoadedMsg:
		if msg.Err == nil {
			s.events[msg.LevelID] = msg.Events
		}
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.activity)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			if len(s.activity) == 0 {
				return s, nil
			}
			s.expanded[s.selected] = !s.expanded[s.selected]
			if s.expanded[s.selected] {
				return s, s.loadEvents(s.activity[s.selected].LevelID)
			}
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) loadEvents(levelID int) tea.Cmd {
	if _, ok := s.events[levelID]; ok || s.eventRepo == nil {
		return nil
	}
	repo := s.eventRepo
	return func() tea.Msg {
		events, err := repo.QueryLevelEvents(context.Background(),
			store.QueryOpts{LevelID: levelID, Limit: eventLimit})
		return eventsLoadedMsg{LevelID: levelID, Events: events, Err: err}
	}
}

func (s *HistoryScreen) levelName(id int) string {
	if t := s.titles[id]; t != "" {
		return t
	}
	return fmt.Sprintf("Level %d", id)
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading activity...")
	}
	if len(s.activity) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No levels played yet. Pick one from the home screen!")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, a := range s.activity {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}

		sessions := fmt.Sprintf("%d session", a.Sessions)
		if a.Sessions != 1 {
			sessions += "s"
		}
		line := fmt.Sprintf("%s%-24s  %s  %d/%d answers (%.0f%%)  %s",
			prefix, s.levelName(a.LevelID), sessions, a.Correct, a.Answered,
			a.Accuracy()*100, humanize.Time(a.LastPlayed))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			b.WriteString(s.renderEvents(a.LevelID, width))
		}
	}

	return b.String()
}

func (s *HistoryScreen) renderEvents(levelID, width int) string {
	events, ok := s.events[levelID]
	dim := lipgloss.NewStyle().Foreground(theme.TextDim).Italic(true)
	if !ok {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, dim.Render("    Loading...")) + "\n"
	}
	if len(events) == 0 {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, dim.Render("    No events recorded")) + "\n"
	}

	var b strings.Builder
	for _, ev := range events {
		line := fmt.Sprintf("    %s  %s", ev.Timestamp.Format("Jan 02 15:04"), describe(ev))
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(eventColor(ev)).Render(line)))
		b.WriteString("\n")
	}
	return b.String()
}

func describe(ev store.LevelEventRecord) string {
	switch ev.Kind {
	case store.EventSessionStarted:
		return "Started a session"
	case store.EventSegmentComplete:
		return fmt.Sprintf("Reached checkpoint %d", ev.Segment+1)
	case store.EventQuizAnswered:
		if ev.Correct {
			return fmt.Sprintf("Answered checkpoint %d correctly", ev.Segment+1)
		}
		return fmt.Sprintf("Missed checkpoint %d", ev.Segment+1)
	case store.EventSegmentRestarted:
		return fmt.Sprintf("Rewatched part %d", ev.Segment+1)
	case store.EventVideoComplete:
		return "Finished the video"
	case store.EventPhaseChanged:
		if p, ok := ev.Detail["to"].(string); ok {
			return "Moved to " + p
		}
		return "Changed step"
	case store.EventPracticeGraded:
		if ev.Correct {
			return "Passed the quiz"
		}
		return "Failed the quiz"
	case store.EventProofSubmitted:
		if ev.Correct {
			return "Proof verified"
		}
		return "Proof rejected"
	case store.EventProgressReported:
		if !ev.Correct {
			return "Saving progress failed"
		}
		return "Progress saved"
	case store.EventSessionEnded:
		if ev.Correct {
			return "Completed the level"
		}
		return "Left the level"
	default:
		return string(ev.Kind)
	}
}

func eventColor(ev store.LevelEventRecord) color.Color {
	switch ev.Kind {
	case store.EventSessionEnded, store.EventProofSubmitted, store.EventPracticeGraded:
		if ev.Correct {
			return theme.Primary
		}
		return theme.Accent
	case store.EventQuizAnswered, store.EventProgressReported:
		if !ev.Correct {
			return theme.Error
		}
		return theme.Text
	default:
		return theme.TextDim
	}
}
