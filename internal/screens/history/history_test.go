package history

import (
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screens/screenstest"
	"github.com/ecoloop/ecoloop/internal/store"
)

func seededRepo() *screenstest.MockEventRepo {
	now := time.Now()
	return &screenstest.MockEventRepo{
		Activity: []store.LevelActivity{
			{LevelID: 4, Sessions: 2, Answered: 5, Correct: 4, LastPlayed: now.Add(-time.Hour)},
			{LevelID: 7, Sessions: 1, Answered: 2, Correct: 1, LastPlayed: now.Add(-48 * time.Hour)},
		},
		Records: []store.LevelEventRecord{
			{Sequence: 3, Timestamp: now, LevelEventData: store.LevelEventData{
				LevelID: 4, Kind: store.EventQuizAnswered, Segment: 1, Correct: false}},
			{Sequence: 2, Timestamp: now, LevelEventData: store.LevelEventData{
				LevelID: 4, Kind: store.EventSessionStarted, Segment: -1,
				Detail: map[string]any{"title": "Sorting waste"}}},
			{Sequence: 1, Timestamp: now, LevelEventData: store.LevelEventData{
				LevelID: 7, Kind: store.EventSessionStarted, Segment: -1}},
		},
	}
}

func load(t *testing.T, s *HistoryScreen) {
	t.Helper()
	msg := s.Init()()
	s.Update(msg)
}

func TestHistoryListsActivity(t *testing.T) {
	s := New(seededRepo())
	if !strings.Contains(s.View(100, 30), "Loading") {
		t.Error("expected loading state before Init completes")
	}
	load(t, s)

	view := s.View(120, 30)
	for _, want := range []string{"Sorting waste", "2 sessions", "4/5 answers (80%)", "Level 7", "1 session "} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestHistoryEmpty(t *testing.T) {
	s := New(&screenstest.MockEventRepo{})
	load(t, s)
	if !strings.Contains(s.View(100, 30), "No levels played yet") {
		t.Error("expected empty message")
	}
}

func TestHistoryExpandLoadsEvents(t *testing.T) {
	s := New(seededRepo())
	load(t, s)

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expanding should load the level's events")
	}
	if !strings.Contains(s.View(120, 30), "Loading...") {
		t.Error("expected loading line while events are fetched")
	}
	s.Update(cmd())

	view := s.View(120, 30)
	if !strings.Contains(view, "Missed checkpoint 2") {
		t.Errorf("expected event line, got:\n%s", view)
	}
	if !strings.Contains(view, "Started a session") {
		t.Errorf("expected session start, got:\n%s", view)
	}

	// Collapsing and expanding again reuses the loaded events.
	s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if _, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter}); cmd != nil {
		t.Error("events should not be reloaded")
	}
}

func TestHistoryNavigation(t *testing.T) {
	s := New(seededRepo())
	load(t, s)

	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if s.selected != 1 {
		t.Errorf("selected = %d, want 1", s.selected)
	}
	s.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	if s.selected != 0 {
		t.Errorf("selected = %d, want 0", s.selected)
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("esc should pop the screen")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		ev   store.LevelEventData
		want string
	}{
		{store.LevelEventData{Kind: store.EventSegmentComplete, Segment: 0}, "Reached checkpoint 1"},
		{store.LevelEventData{Kind: store.EventQuizAnswered, Segment: 2, Correct: true}, "Answered checkpoint 3 correctly"},
		{store.LevelEventData{Kind: store.EventPhaseChanged, Detail: map[string]any{"to": "quiz"}}, "Moved to quiz"},
		{store.LevelEventData{Kind: store.EventProofSubmitted}, "Proof rejected"},
		{store.LevelEventData{Kind: store.EventSessionEnded, Correct: true}, "Completed the level"},
		{store.LevelEventData{Kind: "custom"}, "custom"},
	}
	for _, tt := range tests {
		got := describe(store.LevelEventRecord{LevelEventData: tt.ev})
		if got != tt.want {
			t.Errorf("describe(%s) = %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
}
