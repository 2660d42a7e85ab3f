package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/progression"
	"github.com/ecoloop/ecoloop/internal/quiz"
	"github.com/ecoloop/ecoloop/internal/store"
)

type memEvents struct {
	events []store.LevelEventData
}

func (m *memEvents) AppendLevelEvent(_ context.Context, ev store.LevelEventData) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memEvents) QueryLevelEvents(context.Context, store.QueryOpts) ([]store.LevelEventRecord, error) {
	return nil, nil
}

func (m *memEvents) LevelActivity(context.Context, int) ([]store.LevelActivity, error) {
	return nil, nil
}

func (m *memEvents) kinds() []store.EventKind {
	var out []store.EventKind
	for _, ev := range m.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testLevel() api.Level {
	qs := make([]quiz.Question, 5)
	for i := range qs {
		seg := i
		qs[i] = quiz.Question{
			ID:           i + 1,
			SegmentIndex: &seg,
			Text:         "Which bin?",
			Options:      quiz.Options{"Blue", "Green", "Black"},
			CorrectIndex: 1,
		}
	}
	return api.Level{
		ID:              4,
		Title:           "Sorting waste",
		DurationSeconds: 300,
		XPReward:        100,
		Questions:       qs,
	}
}

func newTestSession(t *testing.T) (*SessionState, *clock.Fake, *memEvents) {
	t.Helper()
	clk := clock.NewFake(time.Unix(5000, 0))
	ev := &memEvents{}
	s := NewSessionState(testLevel(), "sess-1", DefaultConfig(), WithClock(clk), WithEventRepo(ev))
	s.Start()
	require.True(t, s.Play())
	return s, clk, ev
}

// play advances the video until a report or a quiz appears, or seconds run out.
func play(s *SessionState, seconds float64) ([]progression.Effect, *Report) {
	var all []progression.Effect
	for step := 0.0; step < seconds; step += 0.25 {
		effects, rep := s.Advance(0.25)
		all = append(all, effects...)
		if rep != nil {
			return all, rep
		}
	}
	return all, nil
}

func answerSegment(t *testing.T, s *SessionState, clk *clock.Fake, option int) ([]progression.Effect, *Report) {
	t.Helper()
	require.NoError(t, s.SelectAnswer(option))
	v, err := s.SubmitAnswer()
	require.NoError(t, err)
	clk.Advance(v.Delay)
	return s.ResolveAnswer()
}

// finishVideo passes every segment quiz and plays to the end.
func finishVideo(t *testing.T, s *SessionState, clk *clock.Fake) *Report {
	t.Helper()
	for i := 0; i < 4; i++ {
		play(s, 61)
		require.True(t, s.Runner.Controller().QuizVisible(), "segment %d quiz", i)
		answerSegment(t, s, clk, 1)
	}
	_, rep := play(s, 61)
	require.NotNil(t, rep)
	return rep
}

func TestVideoPhaseScenario(t *testing.T) {
	s, clk, _ := newTestSession(t)

	effects, _ := play(s, 59)
	assert.Empty(t, effects)
	assert.False(t, s.Runner.Controller().QuizVisible())

	effects, _ = play(s, 1)
	assert.Equal(t, []progression.Effect{progression.ShowQuiz{Segment: 0}}, effects)

	// Wrong answer rewinds to the start of segment 0.
	answerSegment(t, s, clk, 0)
	assert.Equal(t, 0.0, s.Media.Position())
	idx, _ := s.Segment()
	assert.Equal(t, 0, idx)
	assert.Equal(t, 1, s.Restarts)
	s.RestartSettled()

	play(s, 60.25)
	answerSegment(t, s, clk, 1)
	idx, _ = s.Segment()
	assert.Equal(t, 1, idx)
	assert.False(t, s.Media.Paused())
	assert.Equal(t, PhaseVideo, s.Phase)
}

func TestVideoCompleteIssuesWatchReportOnce(t *testing.T) {
	s, clk, _ := newTestSession(t)
	rep := finishVideo(t, s, clk)

	assert.Equal(t, PhaseInfo, s.Phase)
	assert.Equal(t, ReportWatch, rep.Kind)
	assert.Equal(t, api.ProgressRequest{LevelID: 4, XPEarned: 50}, rep.Request)
	assert.True(t, s.Reporting())

	// Further ticks and ends do nothing once the video phase is over.
	effects, again := s.Ended()
	assert.Nil(t, effects)
	assert.Nil(t, again)
}

func TestWatchRewardDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WatchRewardXP = 0
	clk := clock.NewFake(time.Unix(0, 0))
	s := NewSessionState(testLevel(), "s", cfg, WithClock(clk))
	require.True(t, s.Play())

	for i := 0; i < 4; i++ {
		play(s, 61)
		answerSegment(t, s, clk, 1)
	}
	play(s, 61)
	assert.Equal(t, PhaseInfo, s.Phase)
	assert.False(t, s.Reporting())
}

func TestSeekAheadSnapsBack(t *testing.T) {
	s, _, _ := newTestSession(t)
	play(s, 10)
	s.Seek(150)
	s.Advance(0.25)
	assert.InDelta(t, 60-0.05, s.Media.Position(), 0.3)
	idx, _ := s.Segment()
	assert.Equal(t, 0, idx)
}

func TestFastPlaybackReachesBoundary(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		dt       float64
		seek     float64
		wantEnd  float64
	}{
		{name: "90s at 4x steps", duration: 90, dt: 4, wantEnd: 18},
		{name: "300s at 1s steps after seek", duration: 300, dt: 1, seek: 100, wantEnd: 60},
		{name: "300s at 16x steps", duration: 300, dt: 4, wantEnd: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl := testLevel()
			lvl.DurationSeconds = tt.duration
			s := NewSessionState(lvl, "sess-1", DefaultConfig(), WithClock(clock.NewFake(time.Unix(5000, 0))))
			s.Start()
			require.True(t, s.Play())
			if tt.seek > 0 {
				s.Seek(tt.seek)
				s.Advance(tt.dt)
			}

			for i := 0; i < 100 && !s.Runner.Controller().QuizVisible(); i++ {
				s.Advance(tt.dt)
			}
			require.True(t, s.Runner.Controller().QuizVisible(), "quiz never opened, position %.2f", s.Media.Position())
			assert.InDelta(t, tt.wantEnd, s.Media.Position(), 1e-9)
			assert.True(t, s.Media.Paused())
		})
	}
}

func TestPlayRefusedWhileQuizOpen(t *testing.T) {
	s, _, _ := newTestSession(t)
	play(s, 60)
	require.True(t, s.Runner.Controller().QuizVisible())
	assert.False(t, s.Play())
	assert.True(t, s.Media.Paused())
}

func TestPhaseSequence(t *testing.T) {
	s, clk, ev := newTestSession(t)

	assert.ErrorIs(t, s.ReadInfo(), ErrWrongPhase)
	assert.ErrorIs(t, s.GoTo(PhaseQuiz), ErrNotVisited)

	rep := finishVideo(t, s, clk)
	s.Reported(rep.Kind, api.ProgressResult{NewBalance: 10}, nil)
	assert.Equal(t, 50, s.XPReported)

	require.NoError(t, s.ReadInfo())
	assert.Equal(t, PhaseQuiz, s.Phase)
	require.Len(t, s.Practice.Questions(), 5)

	// Back to the recap and forward again keeps the attempt.
	require.NoError(t, s.GoTo(PhaseInfo))
	require.NoError(t, s.GoTo(PhaseQuiz))
	assert.ErrorIs(t, s.GoTo(PhaseTask), ErrNotVisited)

	// 2/5 fails.
	for i := 0; i < 5; i++ {
		opt := 0
		if i < 2 {
			opt = 1
		}
		require.NoError(t, s.AnswerPractice(i, opt))
	}
	res, err := s.SubmitPractice()
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, PhaseQuiz, s.Phase)

	require.NoError(t, s.RetryPractice())
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AnswerPractice(i, 1))
	}
	res, err = s.SubmitPractice()
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, PhaseTask, s.Phase)

	assert.Contains(t, ev.kinds(), store.EventPracticeGraded)
	assert.Contains(t, ev.kinds(), store.EventPhaseChanged)
	assert.Equal(t, store.EventSessionStarted, ev.events[0].Kind)
	for _, e := range ev.events {
		assert.Equal(t, "sess-1", e.SessionID)
		assert.Equal(t, 4, e.LevelID)
	}
}

func toTask(t *testing.T) *SessionState {
	t.Helper()
	s, clk, _ := newTestSession(t)
	rep := finishVideo(t, s, clk)
	s.Reported(rep.Kind, api.ProgressResult{}, nil)
	require.NoError(t, s.ReadInfo())
	for i := range s.Practice.Questions() {
		require.NoError(t, s.AnswerPractice(i, 1))
	}
	_, err := s.SubmitPractice()
	require.NoError(t, err)
	require.Equal(t, PhaseTask, s.Phase)
	return s
}

func TestCompletionReport(t *testing.T) {
	s := toTask(t)

	rep, err := s.ProofVerified(api.Verification{Verified: true, Message: "Nice work"})
	require.NoError(t, err)
	assert.Equal(t, api.ProgressRequest{LevelID: 4, CoinsEarned: 100, XPEarned: 100, IsLevelCompletion: true}, rep.Request)

	// No second completion while the first is in flight.
	_, err = s.ProofVerified(api.Verification{Verified: true})
	assert.ErrorIs(t, err, ErrReportPending)

	s.Reported(ReportCompletion, api.ProgressResult{NewBalance: 260}, nil)
	assert.True(t, s.Completed())
	assert.Equal(t, PhaseDone, s.Phase)
	require.NotNil(t, s.NewCoinBalance)
	assert.Equal(t, 260, *s.NewCoinBalance)

	// And none after it succeeded.
	assert.ErrorIs(t, s.GoTo(PhaseTask), ErrWrongPhase)
	_, ok := s.RetryReport()
	assert.False(t, ok)

	sum := BuildSummary(s)
	assert.True(t, sum.Completed)
	assert.Equal(t, 5, sum.SegmentsPassed)
	assert.Equal(t, 150, sum.XPEarned)
	assert.Equal(t, 100, sum.CoinsEarned)
}

func TestFailedCompletionShowsRetry(t *testing.T) {
	s := toTask(t)
	bal := 200
	s.NewCoinBalance = &bal

	rep, err := s.ProofVerified(api.Verification{Verified: true})
	require.NoError(t, err)
	netErr := &api.ErrNetwork{Op: "update_progress", Err: errors.New("reset")}
	s.Reported(rep.Kind, api.ProgressResult{}, netErr)

	assert.False(t, s.Completed())
	assert.Equal(t, PhaseTask, s.Phase)
	assert.Equal(t, RetryMessage, s.RetryPrompt)
	assert.Equal(t, 0, s.CoinsReported)
	assert.Equal(t, 200, *s.NewCoinBalance)
	assert.ErrorIs(t, s.ReportError(ReportCompletion), netErr)

	retry, ok := s.RetryReport()
	require.True(t, ok)
	assert.Equal(t, rep, retry)
	_, ok = s.RetryReport()
	assert.False(t, ok, "retry must not double-send while in flight")

	s.Reported(ReportCompletion, api.ProgressResult{NewBalance: 300}, nil)
	assert.True(t, s.Completed())
	assert.Empty(t, s.RetryPrompt)
}

func TestFailedWatchReportDoesNotBlockInfo(t *testing.T) {
	s, clk, _ := newTestSession(t)
	rep := finishVideo(t, s, clk)
	s.Reported(rep.Kind, api.ProgressResult{}, &api.ErrTimeout{Op: "update_progress"})

	assert.Equal(t, PhaseInfo, s.Phase)
	assert.Equal(t, RetryMessage, s.RetryPrompt)
	require.NoError(t, s.ReadInfo())

	retry, ok := s.RetryReport()
	require.True(t, ok)
	assert.Equal(t, ReportWatch, retry.Kind)
}

func TestReportedIgnoresUnknownOrStale(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Reported(ReportCompletion, api.ProgressResult{NewBalance: 1}, nil)
	assert.False(t, s.Completed())
	assert.Nil(t, s.NewCoinBalance)
}

func TestProofRejectedKeepsTaskOpen(t *testing.T) {
	s := toTask(t)
	rej := &api.ErrVerificationRejected{Result: api.Verification{Message: "No tree visible", Suggestions: []string{"Show the sapling"}}}
	s.ProofRejected(rej)

	assert.Equal(t, PhaseTask, s.Phase)
	assert.Equal(t, 1, s.ProofAttempts)
	assert.Same(t, rej, s.Rejection)

	_, err := s.ProofVerified(api.Verification{Verified: true})
	require.NoError(t, err)
	assert.Nil(t, s.Rejection)
	assert.Equal(t, 2, s.ProofAttempts)
}

func TestOperationsRejectWrongPhase(t *testing.T) {
	s, _, _ := newTestSession(t)
	assert.ErrorIs(t, s.AnswerPractice(0, 0), ErrWrongPhase)
	_, err := s.SubmitPractice()
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.ErrorIs(t, s.RetryPractice(), ErrWrongPhase)
	_, err = s.ProofVerified(api.Verification{Verified: true})
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PhaseVideo, "video"},
		{PhaseInfo, "info"},
		{PhaseQuiz, "quiz"},
		{PhaseTask, "task"},
		{PhaseDone, "done"},
		{Phase(9), "Phase(9)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}
