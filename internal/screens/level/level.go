// Package level is the screen a learner plays a level on: the gated video
// with its segment quizzes, the recap, the practice quiz and the proof task.
package level

import (
	"context"
	"errors"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/playback"
	"github.com/ecoloop/ecoloop/internal/progression"
	"github.com/ecoloop/ecoloop/internal/proof"
	"github.com/ecoloop/ecoloop/internal/quiz"
	"github.com/ecoloop/ecoloop/internal/router"
	"github.com/ecoloop/ecoloop/internal/screen"
	"github.com/ecoloop/ecoloop/internal/screens"
	"github.com/ecoloop/ecoloop/internal/screens/summary"
	"github.com/ecoloop/ecoloop/internal/session"
	"github.com/ecoloop/ecoloop/internal/ui/components"
	"github.com/ecoloop/ecoloop/internal/ui/layout"
)

const (
	// tickInterval is how often the simulated video advances.
	tickInterval = 250 * time.Millisecond

	// seekStep is how far the arrow keys move the playhead, in seconds.
	seekStep = 10.0

	maxSpeed = 16.0
)

// LevelScreen plays one level.
type LevelScreen struct {
	deps  screens.Deps
	state *session.SessionState

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	ticking bool
	speed   float64

	// segment quiz overlay
	choice components.MultiChoice

	// practice quiz
	practiceIdx    int
	practiceChoice components.MultiChoice
	practiceMsg    string

	// proof task
	proofInput components.TextInput
	proofBusy  bool
	proofFile  string
	proofErr   string

	retryBtn components.Button
	spinner  spinner.Model
	flash    string
}

var _ screen.Screen = (*LevelScreen)(nil)
var _ screen.KeyHintProvider = (*LevelScreen)(nil)
var _ screen.Closer = (*LevelScreen)(nil)

// New creates a LevelScreen for lvl with a fresh session.
func New(deps screens.Deps, lvl api.Level) *LevelScreen {
	deps = deps.WithDefaults()
	media := playback.NewSimulatedMedia(lvl.TotalDuration(deps.Session.DefaultDuration), !deps.Autoplay)
	state := session.NewSessionState(lvl, uuid.NewString(), deps.Session,
		session.WithMedia(media),
		session.WithClock(deps.Clock),
		session.WithLogger(deps.Log),
		session.WithEventRepo(deps.Events),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &LevelScreen{
		deps:       deps,
		state:      state,
		ctx:        ctx,
		cancel:     cancel,
		speed:      1,
		proofInput: components.NewTextInput("Proof file", "path to a photo or short video", 1024),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	s.retryBtn = components.NewButton("Try again", "ctrl+r", false, s.retry)
	return s
}

// State exposes the session for inspection.
func (s *LevelScreen) State() *session.SessionState { return s.state }

func (s *LevelScreen) Init() tea.Cmd {
	s.state.Start()
	return s.startTicking()
}

func (s *LevelScreen) Title() string {
	return s.state.Level.Title
}

// Close cancels in-flight requests and records the end of the session.
// It is called when the screen leaves the stack and is idempotent.
func (s *LevelScreen) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.state.End()
}

func (s *LevelScreen) KeyHints() []layout.KeyHint {
	hints := s.phaseHints()
	if s.retryBtn.Active {
		hints = append(hints, layout.KeyHint{Key: "Ctrl+R", Description: "Retry save"})
	}
	return append(hints, layout.KeyHint{Key: "Esc", Description: "Leave"})
}

func (s *LevelScreen) phaseHints() []layout.KeyHint {
	nav := layout.KeyHint{Key: "Shift+←→", Description: "Steps"}
	switch s.state.Phase {
	case session.PhaseVideo:
		if s.state.Runner.Controller().QuizVisible() {
			return []layout.KeyHint{
				{Key: "↑↓/A-F", Description: "Choose"},
				{Key: "Enter", Description: "Submit"},
			}
		}
		return []layout.KeyHint{
			{Key: "Space", Description: "Play/Pause"},
			{Key: "←→", Description: "Seek"},
			{Key: "[ ]", Description: "Speed"},
			nav,
		}
	case session.PhaseInfo:
		return []layout.KeyHint{{Key: "Enter", Description: "Start quiz"}, nav}
	case session.PhaseQuiz:
		if r := s.state.LastPractice; r != nil && !r.Passed {
			return []layout.KeyHint{{Key: "r", Description: "Retry quiz"}, nav}
		}
		return []layout.KeyHint{
			{Key: "↑↓", Description: "Choose"},
			{Key: "Enter", Description: "Answer"},
			{Key: "Tab", Description: "Next question"},
			{Key: "s", Description: "Submit"},
			nav,
		}
	case session.PhaseTask:
		return []layout.KeyHint{{Key: "Enter", Description: "Upload proof"}, nav}
	}
	return nil
}

func (s *LevelScreen) stale(id string) bool {
	return s.closed || id != s.state.SessionID
}

func (s *LevelScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case playbackTickMsg:
		if s.stale(msg.SessionID) {
			return s, nil
		}
		return s, s.onTick()

	case verdictDueMsg:
		if s.stale(msg.SessionID) {
			return s, nil
		}
		return s, s.onVerdictDue()

	case restartSettledMsg:
		if s.stale(msg.SessionID) {
			return s, nil
		}
		s.state.RestartSettled()
		return s, nil

	case reportDoneMsg:
		if s.stale(msg.SessionID) {
			return s, nil
		}
		return s, s.onReported(msg)

	case proofDoneMsg:
		if s.stale(msg.SessionID) {
			return s, nil
		}
		return s, s.onProof(msg)

	case spinner.TickMsg:
		if !s.proofBusy && !s.state.Reporting() {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyPressMsg:
		return s, s.onKey(msg)
	}

	if s.state.Phase == session.PhaseTask {
		var cmd tea.Cmd
		s.proofInput, cmd = s.proofInput.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *LevelScreen) onKey(msg tea.KeyPressMsg) tea.Cmd {
	s.flash = ""

	s.retryBtn.Active = s.state.RetryPrompt != "" && !s.state.Reporting()
	var cmd tea.Cmd
	if s.retryBtn, cmd = s.retryBtn.Update(msg); cmd != nil {
		return cmd
	}

	switch msg.String() {
	case "esc":
		return func() tea.Msg { return router.PopScreenMsg{} }
	case "shift+left":
		return s.step(-1)
	case "shift+right":
		return s.step(1)
	}

	switch s.state.Phase {
	case session.PhaseVideo:
		return s.videoKey(msg)
	case session.PhaseInfo:
		if msg.String() == "enter" {
			if err := s.state.ReadInfo(); err == nil {
				s.showPractice(0)
			}
		}
	case session.PhaseQuiz:
		return s.practiceKey(msg)
	case session.PhaseTask:
		return s.taskKey(msg)
	}
	return nil
}

// step moves to the previous or next visited phase.
func (s *LevelScreen) step(delta int) tea.Cmd {
	cur := -1
	for i, p := range session.Phases {
		if p == s.state.Phase {
			cur = i
		}
	}
	if cur < 0 {
		return nil
	}
	for i := cur + delta; i >= 0 && i < len(session.Phases); i += delta {
		p := session.Phases[i]
		if !s.state.Visited[p] {
			continue
		}
		if err := s.state.GoTo(p); err != nil {
			return nil
		}
		return s.enteredPhase()
	}
	return nil
}

// enteredPhase prepares the view of the phase just entered.
func (s *LevelScreen) enteredPhase() tea.Cmd {
	switch s.state.Phase {
	case session.PhaseVideo:
		return s.startTicking()
	case session.PhaseQuiz:
		s.showPractice(s.practiceIdx)
	case session.PhaseTask:
		return s.proofInput.Focus()
	}
	return nil
}

func (s *LevelScreen) startTicking() tea.Cmd {
	if s.ticking || s.closed || s.state.Phase != session.PhaseVideo {
		return nil
	}
	s.ticking = true
	return s.tick()
}

func (s *LevelScreen) tick() tea.Cmd {
	id := s.state.SessionID
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return playbackTickMsg{SessionID: id}
	})
}

func (s *LevelScreen) onTick() tea.Cmd {
	if s.state.Phase != session.PhaseVideo {
		s.ticking = false
		return nil
	}
	effects, rep := s.state.Advance(tickInterval.Seconds() * s.speed)
	cmds := s.applyEffects(effects)
	if rep != nil {
		cmds = append(cmds, s.report(*rep))
	}
	if s.state.Phase == session.PhaseVideo {
		cmds = append(cmds, s.tick())
	} else {
		s.ticking = false
	}
	return tea.Batch(cmds...)
}

func (s *LevelScreen) applyEffects(effects []progression.Effect) []tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range effects {
		switch e := e.(type) {
		case progression.ShowQuiz:
			if ch := s.state.Runner.Challenge(); ch != nil {
				q := ch.Question()
				s.choice = components.NewMultiChoice(q.Text, q.Options)
			}
		case progression.ScheduleRestartReset:
			id := s.state.SessionID
			cmds = append(cmds, tea.Tick(e.After, func(time.Time) tea.Msg {
				return restartSettledMsg{SessionID: id}
			}))
		case progression.RestartSegment:
			s.flash = "Not quite. Watch this part again."
		case progression.ResumePlayback:
			s.flash = "Correct! On to the next part."
		case progression.VideoDone:
			s.flash = "Video complete!"
		}
	}
	return cmds
}

func (s *LevelScreen) videoKey(msg tea.KeyPressMsg) tea.Cmd {
	if s.state.Runner.Controller().QuizVisible() {
		return s.segmentQuizKey(msg)
	}
	switch msg.String() {
	case "space", " ":
		if !s.state.TogglePlay() && s.state.Media.Paused() {
			s.flash = "Answer the question to keep watching."
		}
	case "left":
		s.state.Seek(-seekStep)
	case "right":
		s.state.Seek(seekStep)
	case "]":
		s.speed = min(s.speed*2, maxSpeed)
	case "[":
		s.speed = max(s.speed/2, 1)
	}
	return nil
}

func (s *LevelScreen) segmentQuizKey(msg tea.KeyPressMsg) tea.Cmd {
	ch := s.state.Runner.Challenge()
	if ch == nil || ch.Submitted() {
		return nil
	}
	if msg.String() != "enter" {
		s.choice, _ = s.choice.Update(msg)
		return nil
	}

	if err := s.state.SelectAnswer(s.choice.Cursor); err != nil {
		s.flash = err.Error()
		return nil
	}
	v, err := s.state.SubmitAnswer()
	if err != nil {
		s.flash = err.Error()
		return nil
	}
	s.choice.Chosen = s.choice.Cursor
	s.choice.Correct = ch.Question().CorrectIndex
	s.choice.Locked = true
	s.choice.Revealed = true
	return s.verdictAfter(v.Delay)
}

func (s *LevelScreen) verdictAfter(d time.Duration) tea.Cmd {
	id := s.state.SessionID
	return tea.Tick(d, func(time.Time) tea.Msg { return verdictDueMsg{SessionID: id} })
}

func (s *LevelScreen) onVerdictDue() tea.Cmd {
	ch := s.state.Runner.Challenge()
	effects, rep := s.state.ResolveAnswer()
	if len(effects) == 0 && ch != nil && ch.Submitted() && !ch.Resolved() {
		// The tick fired a little early.
		return s.verdictAfter(ch.Remaining() + 10*time.Millisecond)
	}
	cmds := s.applyEffects(effects)
	if rep != nil {
		cmds = append(cmds, s.report(*rep))
	}
	return tea.Batch(cmds...)
}

func (s *LevelScreen) showPractice(i int) {
	p := s.state.Practice
	if p == nil || len(p.Questions()) == 0 {
		s.practiceIdx = 0
		return
	}
	i = max(0, min(i, len(p.Questions())-1))
	s.practiceIdx = i
	q := p.Questions()[i]
	s.practiceChoice = components.NewMultiChoice(q.Text, q.Options)
	if a := p.AnswerOf(i); a >= 0 {
		s.practiceChoice.Chosen = a
		s.practiceChoice.Cursor = a
	}
	if r := s.state.LastPractice; r != nil {
		s.practiceChoice.Locked = true
		s.practiceChoice.Revealed = true
		s.practiceChoice.Correct = q.CorrectIndex
	}
}

func (s *LevelScreen) practiceKey(msg tea.KeyPressMsg) tea.Cmd {
	p := s.state.Practice
	if p == nil {
		return nil
	}
	if r := s.state.LastPractice; r != nil && !r.Passed {
		switch msg.String() {
		case "r":
			if err := s.state.RetryPractice(); err == nil {
				s.practiceMsg = ""
				s.showPractice(0)
			}
		case "tab", "right":
			s.showPractice(s.practiceIdx + 1)
		case "shift+tab", "left":
			s.showPractice(s.practiceIdx - 1)
		}
		return nil
	}

	switch msg.String() {
	case "tab", "right":
		s.showPractice(s.practiceIdx + 1)
	case "shift+tab", "left":
		s.showPractice(s.practiceIdx - 1)
	case "enter":
		if len(p.Questions()) == 0 {
			return s.submitPractice()
		}
		if err := s.state.AnswerPractice(s.practiceIdx, s.practiceChoice.Cursor); err != nil {
			s.practiceMsg = err.Error()
			return nil
		}
		s.practiceChoice.Chosen = s.practiceChoice.Cursor
		if next := s.nextUnanswered(); next >= 0 {
			s.showPractice(next)
		} else {
			s.practiceMsg = "All answered. Press s to submit."
		}
	case "s":
		return s.submitPractice()
	default:
		s.practiceChoice, _ = s.practiceChoice.Update(msg)
	}
	return nil
}

func (s *LevelScreen) nextUnanswered() int {
	p := s.state.Practice
	n := len(p.Questions())
	for k := 1; k <= n; k++ {
		i := (s.practiceIdx + k) % n
		if p.AnswerOf(i) < 0 {
			return i
		}
	}
	return -1
}

func (s *LevelScreen) submitPractice() tea.Cmd {
	res, err := s.state.SubmitPractice()
	if err != nil {
		var verr *quiz.ValidationError
		if errors.As(err, &verr) {
			s.practiceMsg = verr.Reason
		} else {
			s.practiceMsg = err.Error()
		}
		return nil
	}
	if res.Passed {
		s.practiceMsg = ""
		s.flash = "Quiz passed! Time for the real-world task."
		return s.enteredPhase()
	}
	s.practiceMsg = "Not enough correct answers yet. Review the answers, then press r to try again."
	s.showPractice(s.practiceIdx)
	return nil
}

func (s *LevelScreen) taskKey(msg tea.KeyPressMsg) tea.Cmd {
	if s.proofBusy || s.state.Completed() {
		return nil
	}
	if msg.String() != "enter" {
		var cmd tea.Cmd
		s.proofInput, cmd = s.proofInput.Update(msg)
		return cmd
	}

	path := s.proofInput.Value()
	if _, err := proof.Inspect(path); err != nil {
		s.proofInput.SetError(screens.ErrorText(err))
		return nil
	}

	s.proofBusy = true
	s.proofErr = ""
	backend := s.deps.Backend
	lvl := s.state.Level
	id := s.state.SessionID
	upload := screens.Call(s.ctx, s.deps.RequestTimeout,
		func(ctx context.Context) (proofResult, error) {
			v, f, err := proof.SubmitLevel(ctx, backend, lvl.ID, lvl.TaskDescription, path)
			return proofResult{verification: v, file: f}, err
		},
		func(r proofResult, err error) tea.Msg {
			return proofDoneMsg{SessionID: id, Verification: r.verification, File: r.file, Err: err}
		})
	return tea.Batch(upload, s.spinner.Tick)
}

func (s *LevelScreen) onProof(msg proofDoneMsg) tea.Cmd {
	s.proofBusy = false
	if msg.File.Name != "" {
		s.proofFile = msg.File.Describe()
	}
	if msg.Err != nil {
		var rejected *api.ErrVerificationRejected
		var invalid *api.ErrValidation
		switch {
		case errors.As(msg.Err, &rejected):
			s.state.ProofRejected(rejected)
			s.proofErr = screens.ErrorText(msg.Err)
		case errors.As(msg.Err, &invalid):
			s.proofInput.SetError(screens.ErrorText(msg.Err))
		default:
			s.proofErr = screens.ErrorText(msg.Err)
		}
		s.deps.Log.Warn("proof upload failed", "level_id", s.state.Level.ID, "error", msg.Err)
		return nil
	}

	rep, err := s.state.ProofVerified(msg.Verification)
	if err != nil {
		s.flash = err.Error()
		return nil
	}
	s.flash = "Proof verified!"
	return s.report(rep)
}

func (s *LevelScreen) report(rep session.Report) tea.Cmd {
	acct := s.deps.Account
	id := s.state.SessionID
	call := screens.Call(s.ctx, s.deps.RequestTimeout,
		func(ctx context.Context) (api.ProgressResult, error) { return acct.ReportProgress(ctx, rep.Request) },
		func(res api.ProgressResult, err error) tea.Msg {
			return reportDoneMsg{SessionID: id, Kind: rep.Kind, Result: res, Err: err}
		})
	return tea.Batch(call, s.spinner.Tick)
}

func (s *LevelScreen) retry() tea.Cmd {
	rep, ok := s.state.RetryReport()
	if !ok {
		return nil
	}
	s.retryBtn.Active = false
	return s.report(rep)
}

func (s *LevelScreen) onReported(msg reportDoneMsg) tea.Cmd {
	s.state.Reported(msg.Kind, msg.Result, msg.Err)
	s.retryBtn.Active = s.state.RetryPrompt != "" && !s.state.Reporting()
	if msg.Err != nil || msg.Kind != session.ReportCompletion || !s.state.Completed() {
		return nil
	}
	next := summary.New(session.BuildSummary(s.state))
	return func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
}
