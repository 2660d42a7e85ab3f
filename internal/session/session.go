package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/progression"
	"github.com/ecoloop/ecoloop/internal/quiz"
	"github.com/ecoloop/ecoloop/internal/store"
)

// RetryMessage is shown when a progress report fails.
const RetryMessage = "Failed to save progress. Please try again."

var (
	// ErrWrongPhase is returned when an operation does not apply to the
	// active phase.
	ErrWrongPhase = errors.New("operation not allowed in this phase")

	// ErrNotVisited is returned when navigating to a phase not yet reached.
	ErrNotVisited = errors.New("phase not reached yet")

	// ErrReportPending is returned while a report of the same kind is in
	// flight or has already succeeded.
	ErrReportPending = errors.New("progress report already sent")
)

// Play starts the video on a user gesture. It is refused while a segment
// quiz is open.
func (s *SessionState) Play() bool {
	if s.Phase != PhaseVideo || s.Runner.Controller().QuizVisible() {
		return false
	}
	s.Media.Activate()
	return s.Runner.Gate().UserPlay()
}

// TogglePlay pauses a playing video or starts a paused one.
func (s *SessionState) TogglePlay() bool {
	if !s.Media.Paused() {
		s.Runner.Gate().UserPause()
		return false
	}
	return s.Play()
}

// Seek moves the playhead by delta seconds, as a seek bar would. The gate
// snaps it back on the next tick if it skips an unanswered quiz.
func (s *SessionState) Seek(delta float64) {
	if s.Phase != PhaseVideo {
		return
	}
	s.Media.Seek(s.Media.Position() + delta)
}

// Advance plays dt seconds of the simulated timeline and feeds the
// resulting position (and end of media) through the gate.
func (s *SessionState) Advance(dt float64) ([]progression.Effect, *Report) {
	if s.Phase != PhaseVideo {
		return nil, nil
	}
	// Continuous playback stops exactly at a gated boundary. Only seeks
	// are subject to snap-back.
	if g := s.Runner.Gate(); !s.Media.Paused() && !g.AwaitingQuiz() && g.Index() < g.Count()-1 {
		end := g.Window().End
		if pos := s.Media.Position(); pos < end && pos+dt >= end {
			s.Media.Seek(end)
			return s.Tick(end)
		}
	}
	ended := s.Media.Advance(dt)
	effects, rep := s.Tick(s.Media.Position())
	if ended && rep == nil {
		more, r := s.Ended()
		effects = append(effects, more...)
		rep = r
	}
	return effects, rep
}

// Tick advances the video by a position update. It returns the runner's
// effects and, when the video just finished, the watch report to send.
func (s *SessionState) Tick(position float64) ([]progression.Effect, *Report) {
	if s.Phase != PhaseVideo {
		return nil, nil
	}
	return s.handleEffects(s.Runner.OnTimeUpdate(position))
}

// Ended forwards the natural end of the video.
func (s *SessionState) Ended() ([]progression.Effect, *Report) {
	if s.Phase != PhaseVideo {
		return nil, nil
	}
	return s.handleEffects(s.Runner.OnEnded())
}

// SelectAnswer chooses an option on the open segment quiz.
func (s *SessionState) SelectAnswer(option int) error {
	return s.Runner.Select(option)
}

// SubmitAnswer locks the segment quiz answer.
func (s *SessionState) SubmitAnswer() (quiz.Verdict, error) {
	idx := s.Runner.Controller().Index()
	selected := -1
	if ch := s.Runner.Challenge(); ch != nil {
		selected = ch.Selected()
	}
	v, err := s.Runner.Submit()
	if err != nil {
		return v, err
	}
	s.QuizAnswers++
	if v.Correct {
		s.QuizCorrect++
	}
	s.record(store.LevelEventData{
		Kind:    store.EventQuizAnswered,
		Segment: idx,
		Correct: v.Correct,
		Detail:  map[string]any{"selected": selected},
	})
	return v, nil
}

// ResolveAnswer delivers the pending verdict once its delay has passed.
func (s *SessionState) ResolveAnswer() ([]progression.Effect, *Report) {
	return s.handleEffects(s.Runner.Resolve())
}

// RestartSettled clears the restart flag after the reset delay.
func (s *SessionState) RestartSettled() {
	s.Runner.RestartSettled()
}

func (s *SessionState) handleEffects(effects []progression.Effect) ([]progression.Effect, *Report) {
	var rep *Report
	for _, e := range effects {
		switch e := e.(type) {
		case progression.ShowQuiz:
			s.record(store.LevelEventData{Kind: store.EventSegmentComplete, Segment: e.Segment})
		case progression.RestartSegment:
			s.Restarts++
			s.record(store.LevelEventData{Kind: store.EventSegmentRestarted, Segment: e.Segment})
		case progression.VideoDone:
			rep = s.videoComplete()
		}
	}
	return effects, rep
}

// videoComplete leaves the video phase and issues the watch report once.
func (s *SessionState) videoComplete() *Report {
	s.record(store.LevelEventData{Kind: store.EventVideoComplete, Segment: -1})
	s.enter(PhaseInfo)
	if s.Config.WatchRewardXP <= 0 {
		return nil
	}
	rep, err := s.begin(Report{
		Kind: ReportWatch,
		Request: api.ProgressRequest{
			LevelID:  s.Level.ID,
			XPEarned: s.Config.WatchRewardXP,
		},
	})
	if err != nil {
		return nil
	}
	return &rep
}

// ReadInfo leaves the recap for the practice quiz.
func (s *SessionState) ReadInfo() error {
	if s.Phase != PhaseInfo {
		return ErrWrongPhase
	}
	if s.Practice == nil {
		set := quiz.PracticeSet(s.Level.Questions, s.Config.SegmentCount, s.Config.Policy)
		s.Practice = quiz.NewPractice(set, s.Config.PassRatio)
	}
	s.enter(PhaseQuiz)
	return nil
}

// GoTo navigates to an already visited phase.
func (s *SessionState) GoTo(p Phase) error {
	if p == PhaseDone || !s.Visited[p] {
		return ErrNotVisited
	}
	if s.Phase == PhaseDone {
		return ErrWrongPhase
	}
	s.enter(p)
	return nil
}

// AnswerPractice records an answer on the practice quiz.
func (s *SessionState) AnswerPractice(question, option int) error {
	if s.Phase != PhaseQuiz || s.Practice == nil {
		return ErrWrongPhase
	}
	return s.Practice.Answer(question, option)
}

// SubmitPractice grades the practice quiz. Passing unlocks the task.
func (s *SessionState) SubmitPractice() (quiz.PracticeResult, error) {
	if s.Phase != PhaseQuiz || s.Practice == nil {
		return quiz.PracticeResult{}, ErrWrongPhase
	}
	res, err := s.Practice.Submit()
	if err != nil {
		return res, err
	}
	s.LastPractice = &res
	s.record(store.LevelEventData{
		Kind:    store.EventPracticeGraded,
		Segment: -1,
		Correct: res.Passed,
		Detail:  map[string]any{"correct": res.Correct, "total": res.Total, "attempt": s.Practice.Attempts()},
	})
	if res.Passed {
		s.enter(PhaseTask)
	}
	return res, nil
}

// RetryPractice clears the answers for a new attempt.
func (s *SessionState) RetryPractice() error {
	if s.Phase != PhaseQuiz || s.Practice == nil {
		return ErrWrongPhase
	}
	s.Practice.Retry()
	s.LastPractice = nil
	return nil
}

// ProofVerified records accepted proof and issues the completion report.
func (s *SessionState) ProofVerified(v api.Verification) (Report, error) {
	if s.Phase != PhaseTask {
		return Report{}, ErrWrongPhase
	}
	if st, ok := s.reports[ReportCompletion]; ok && (st.inFlight || st.done) {
		return Report{}, ErrReportPending
	}
	s.ProofAttempts++
	s.Verification = &v
	s.Rejection = nil
	if v.NewCoinBalance != nil {
		bal := *v.NewCoinBalance
		s.NewCoinBalance = &bal
	}
	s.record(store.LevelEventData{Kind: store.EventProofSubmitted, Segment: -1, Correct: true})

	return s.begin(Report{
		Kind:    ReportCompletion,
		Request: CompletionRequest(s.Level),
	})
}

// CompletionRequest is the progress report for finishing level. The coin
// reward equals the level's XP reward.
func CompletionRequest(level api.Level) api.ProgressRequest {
	return api.ProgressRequest{
		LevelID:           level.ID,
		CoinsEarned:       level.XPReward,
		XPEarned:          level.XPReward,
		IsLevelCompletion: true,
	}
}

// ProofRejected records a rejected proof. The task stays open for another
// upload.
func (s *SessionState) ProofRejected(rej *api.ErrVerificationRejected) {
	if s.Phase != PhaseTask || rej == nil {
		return
	}
	s.ProofAttempts++
	s.Rejection = rej
	s.record(store.LevelEventData{
		Kind:    store.EventProofSubmitted,
		Segment: -1,
		Detail:  map[string]any{"reason": rej.Reason()},
	})
}

// Reported acknowledges the outcome of a report returned earlier. A failure
// leaves the level incomplete and sets RetryPrompt.
func (s *SessionState) Reported(kind ReportKind, res api.ProgressResult, err error) {
	st, ok := s.reports[kind]
	if !ok || !st.inFlight {
		return
	}
	st.inFlight = false
	s.record(store.LevelEventData{
		Kind:    store.EventProgressReported,
		Segment: -1,
		Correct: err == nil,
		Detail:  map[string]any{"kind": kind.String(), "xp": st.report.Request.XPEarned},
	})

	if err != nil {
		st.failures++
		st.lastErr = err
		s.RetryPrompt = RetryMessage
		s.log.Warn("progress report failed", "kind", kind.String(), "failures", st.failures, "error", err)
		return
	}

	st.done = true
	st.lastErr = nil
	s.CoinsReported += st.report.Request.CoinsEarned
	s.XPReported += st.report.Request.XPEarned
	bal := res.NewBalance
	s.NewCoinBalance = &bal
	if s.pendingRetry() == nil {
		s.RetryPrompt = ""
	}
	if kind == ReportCompletion {
		s.enter(PhaseDone)
		s.log.Info("level completed", "coins", st.report.Request.CoinsEarned, "xp", st.report.Request.XPEarned)
	}
}

// RetryReport re-issues the failed report, completion first.
func (s *SessionState) RetryReport() (Report, bool) {
	st := s.pendingRetry()
	if st == nil {
		return Report{}, false
	}
	st.inFlight = true
	return st.report, true
}

// Reporting reports whether any progress call is in flight.
func (s *SessionState) Reporting() bool {
	for _, st := range s.reports {
		if st.inFlight {
			return true
		}
	}
	return false
}

// ReportError returns the last failure of kind, or nil.
func (s *SessionState) ReportError(kind ReportKind) error {
	if st, ok := s.reports[kind]; ok {
		return st.lastErr
	}
	return nil
}

// Completed reports whether the completion report succeeded.
func (s *SessionState) Completed() bool {
	st, ok := s.reports[ReportCompletion]
	return ok && st.done
}

func (s *SessionState) pendingRetry() *reportState {
	for _, k := range []ReportKind{ReportCompletion, ReportWatch} {
		if st, ok := s.reports[k]; ok && !st.done && !st.inFlight && st.failures > 0 {
			return st
		}
	}
	return nil
}

func (s *SessionState) begin(r Report) (Report, error) {
	st, ok := s.reports[r.Kind]
	if ok && (st.inFlight || st.done) {
		return Report{}, ErrReportPending
	}
	if !ok {
		st = &reportState{}
		s.reports[r.Kind] = st
	}
	st.report = r
	st.inFlight = true
	return r, nil
}

func (s *SessionState) enter(p Phase) {
	if s.Phase == p {
		return
	}
	from := s.Phase
	s.Phase = p
	s.Visited[p] = true
	s.record(store.LevelEventData{
		Kind:    store.EventPhaseChanged,
		Segment: -1,
		Detail:  map[string]any{"from": from.String(), "to": p.String()},
	})
}

// Start records the beginning of the session.
func (s *SessionState) Start() {
	s.record(store.LevelEventData{Kind: store.EventSessionStarted, Segment: -1,
		Detail: map[string]any{"title": s.Level.Title}})
}

// End records the end of the session.
func (s *SessionState) End() {
	s.record(store.LevelEventData{Kind: store.EventSessionEnded, Segment: -1, Correct: s.Completed(),
		Detail: map[string]any{"phase": s.Phase.String(), "elapsed_s": int(s.Elapsed().Seconds())}})
}

func (s *SessionState) record(ev store.LevelEventData) {
	if s.EventRepo == nil {
		return
	}
	ev.SessionID = s.SessionID
	ev.LevelID = s.Level.ID
	if err := s.EventRepo.AppendLevelEvent(context.Background(), ev); err != nil {
		s.log.Warn("record level event failed", "kind", string(ev.Kind), "error", fmt.Errorf("append: %w", err))
	}
}
