package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCredentialsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	repo := s.CredentialRepo()
	ctx := context.Background()

	if _, err := repo.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("load (empty) err = %v, want ErrNoCredentials", err)
	}

	if err := repo.Save(ctx, Credentials{Token: "tok-1", Username: "mira"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A second save replaces the row rather than adding one.
	if err := repo.Save(ctx, Credentials{Token: "tok-2", Username: "mira"}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	c, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Token != "tok-2" || c.Username != "mira" {
		t.Errorf("loaded %+v", c)
	}
	if c.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}
	if n, _ := countRows(s, "credentials"); n != 1 {
		t.Errorf("credentials rows = %d, want 1", n)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := repo.Load(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("load after clear err = %v", err)
	}
	// Clearing twice is fine.
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear again: %v", err)
	}
}

func TestCredentialsRejectEmptyToken(t *testing.T) {
	s := openTestStore(t)
	if err := s.CredentialRepo().Save(context.Background(), Credentials{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestLevelEventsAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LevelEventData{
		{SessionID: "a", LevelID: 1, Kind: EventSessionStarted, Segment: -1},
		{SessionID: "a", LevelID: 1, Kind: EventQuizAnswered, Segment: 0, Correct: true},
		{SessionID: "a", LevelID: 1, Kind: EventQuizAnswered, Segment: 1, Correct: false,
			Detail: map[string]any{"selected": 2}},
		{SessionID: "b", LevelID: 2, Kind: EventSessionStarted, Segment: -1},
	}
	for i, ev := range events {
		if err := repo.AppendLevelEvent(ctx, ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := repo.QueryLevelEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("events = %d, want 4", len(all))
	}
	// Newest first, sequences strictly decreasing.
	for i := 1; i < len(all); i++ {
		if all[i].Sequence >= all[i-1].Sequence {
			t.Errorf("sequence[%d]=%d not below sequence[%d]=%d", i, all[i].Sequence, i-1, all[i-1].Sequence)
		}
	}

	tests := []struct {
		name string
		opts QueryOpts
		want int
	}{
		{"by session", QueryOpts{SessionID: "a"}, 3},
		{"by level", QueryOpts{LevelID: 2}, 1},
		{"limit", QueryOpts{Limit: 2}, 2},
		{"after", QueryOpts{After: all[1].Sequence}, 1},
		{"from future", QueryOpts{From: time.Now().Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryLevelEvents(ctx, tt.opts)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}

	wrong, err := repo.QueryLevelEvents(ctx, QueryOpts{SessionID: "a", Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if wrong[0].Kind != EventQuizAnswered || wrong[0].Correct {
		t.Errorf("latest event = %+v", wrong[0])
	}
	if got := wrong[0].Detail["selected"]; got != float64(2) {
		t.Errorf("detail selected = %v, want 2", got)
	}
}

func TestLevelEventRequiresSessionAndKind(t *testing.T) {
	s := openTestStore(t)
	err := s.EventRepo().AppendLevelEvent(context.Background(), LevelEventData{LevelID: 1})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLevelActivity(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, ev := range []LevelEventData{
		{SessionID: "a", LevelID: 1, Kind: EventSessionStarted, Segment: -1},
		{SessionID: "a", LevelID: 1, Kind: EventQuizAnswered, Segment: 0, Correct: true},
		{SessionID: "a", LevelID: 1, Kind: EventQuizAnswered, Segment: 1},
		{SessionID: "a", LevelID: 1, Kind: EventQuizAnswered, Segment: 1, Correct: true},
		{SessionID: "c", LevelID: 1, Kind: EventSessionStarted, Segment: -1},
		{SessionID: "b", LevelID: 2, Kind: EventSessionStarted, Segment: -1},
	} {
		if err := repo.AppendLevelEvent(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	acts, err := repo.LevelActivity(ctx, 0)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(acts) != 2 {
		t.Fatalf("activity rows = %d, want 2", len(acts))
	}
	var lvl1 LevelActivity
	for _, a := range acts {
		if a.LevelID == 1 {
			lvl1 = a
		}
	}
	if lvl1.Sessions != 2 || lvl1.Answered != 3 || lvl1.Correct != 2 {
		t.Errorf("level 1 activity = %+v", lvl1)
	}
	if acc := lvl1.Accuracy(); acc < 0.66 || acc > 0.67 {
		t.Errorf("accuracy = %v, want 2/3", acc)
	}

	limited, err := repo.LevelActivity(ctx, 1)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited rows = %d, want 1", len(limited))
	}
}

func TestLevelActivityAccuracyZero(t *testing.T) {
	if got := (LevelActivity{}).Accuracy(); got != 0 {
		t.Errorf("accuracy = %v, want 0", got)
	}
}
