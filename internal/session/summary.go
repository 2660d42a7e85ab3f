package session

import "time"

// SessionSummary holds the data displayed when a level session ends.
type SessionSummary struct {
	LevelTitle       string
	Duration         time.Duration
	Phase            Phase
	Completed        bool
	SegmentsPassed   int
	SegmentCount     int
	QuizAnswers      int
	QuizCorrect      int
	Accuracy         float64
	Restarts         int
	PracticeAttempts int
	ProofAttempts    int
	CoinsEarned      int
	XPEarned         int
	NewCoinBalance   *int
}

// BuildSummary creates a SessionSummary from the current session state.
func BuildSummary(state *SessionState) *SessionSummary {
	idx, count := state.Segment()
	passed := idx
	if state.Runner.Controller().Done() || state.Visited[PhaseInfo] {
		passed = count
	}

	var accuracy float64
	if state.QuizAnswers > 0 {
		accuracy = float64(state.QuizCorrect) / float64(state.QuizAnswers)
	}

	attempts := 0
	if state.Practice != nil {
		attempts = state.Practice.Attempts()
	}

	return &SessionSummary{
		LevelTitle:       state.Level.Title,
		Duration:         state.Elapsed(),
		Phase:            state.Phase,
		Completed:        state.Completed(),
		SegmentsPassed:   passed,
		SegmentCount:     count,
		QuizAnswers:      state.QuizAnswers,
		QuizCorrect:      state.QuizCorrect,
		Accuracy:         accuracy,
		Restarts:         state.Restarts,
		PracticeAttempts: attempts,
		ProofAttempts:    state.ProofAttempts,
		CoinsEarned:      state.CoinsReported,
		XPEarned:         state.XPReported,
		NewCoinBalance:   state.NewCoinBalance,
	}
}
