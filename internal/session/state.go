// Package session sequences one level session: the gated video, the recap,
// the practice quiz and the proof task. It is a pure state machine; network
// calls are made by the caller, which reports their outcome back.
package session

import (
	"fmt"
	"time"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/playback"
	"github.com/ecoloop/ecoloop/internal/progression"
	"github.com/ecoloop/ecoloop/internal/quiz"
	"github.com/ecoloop/ecoloop/internal/segment"
	"github.com/ecoloop/ecoloop/internal/store"
)

// Phase is the active part of a level session.
type Phase int

const (
	PhaseVideo Phase = iota // Watching the gated video
	PhaseInfo               // Reading the recap
	PhaseQuiz               // Practice quiz over the level's questions
	PhaseTask               // Uploading proof of the real-world task
	PhaseDone               // Completion reported
)

func (p Phase) String() string {
	switch p {
	case PhaseVideo:
		return "video"
	case PhaseInfo:
		return "info"
	case PhaseQuiz:
		return "quiz"
	case PhaseTask:
		return "task"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Phases lists the navigable phases in order.
var Phases = []Phase{PhaseVideo, PhaseInfo, PhaseQuiz, PhaseTask}

// Config tunes a level session.
type Config struct {
	SegmentCount    int
	SeekTolerance   float64
	DefaultDuration float64
	PassRatio       float64
	Policy          quiz.Policy

	// WatchRewardXP is reported when the video finishes. Zero disables the
	// watch report.
	WatchRewardXP int
}

// DefaultConfig returns the standard five-segment flow.
func DefaultConfig() Config {
	return Config{
		SegmentCount:    segment.DefaultCount,
		SeekTolerance:   playback.DefaultSeekTolerance,
		DefaultDuration: api.DefaultDurationSeconds,
		PassRatio:       quiz.DefaultPassRatio,
		Policy:          quiz.PolicyShared,
		WatchRewardXP:   50,
	}
}

// ReportKind identifies a progress report.
type ReportKind int

const (
	ReportWatch      ReportKind = iota // Fixed reward for watching the video
	ReportCompletion                   // Level completion after verified proof
)

func (k ReportKind) String() string {
	if k == ReportCompletion {
		return "completion"
	}
	return "watch"
}

// Report is a progress call the caller must send to the backend and then
// acknowledge with Reported.
type Report struct {
	Kind    ReportKind
	Request api.ProgressRequest
}

// reportState guards one kind of report against double submission.
type reportState struct {
	report   Report
	inFlight bool
	done     bool
	failures int
	lastErr  error
}

// SessionState tracks the runtime state of one level session.
type SessionState struct {
	// SessionID is the UUID for this session. Async results carry it so
	// that late responses for an abandoned session can be dropped.
	SessionID string

	// Level is the level being played. It is not modified.
	Level api.Level

	// Config is the tuning the session was created with.
	Config Config

	// Phase is the active phase.
	Phase Phase

	// Visited holds every phase entered so far.
	Visited map[Phase]bool

	// Runner drives the gated video.
	Runner *progression.Runner

	// Media is the playback timeline the runner's gate controls.
	Media *playback.SimulatedMedia

	// Practice is the phase-quiz attempt, created on entering PhaseQuiz.
	Practice *quiz.Practice

	// LastPractice is the most recent graded practice attempt.
	LastPractice *quiz.PracticeResult

	// Verification is the accepted proof result.
	Verification *api.Verification

	// Rejection is the most recent rejected proof, cleared on acceptance.
	Rejection *api.ErrVerificationRejected

	// RetryPrompt is shown while a progress report has failed and can be
	// retried. Empty otherwise.
	RetryPrompt string

	// StartTime is when the session began.
	StartTime time.Time

	// Counters for the summary.
	QuizAnswers    int
	QuizCorrect    int
	Restarts       int
	ProofAttempts  int
	CoinsReported  int
	XPReported     int
	NewCoinBalance *int

	// EventRepo records the session's activity (nil disables recording).
	EventRepo store.EventRepo

	reports map[ReportKind]*reportState
	clock   clock.Clock
	log     *logger.Logger
}

// Option configures a SessionState.
type Option func(*SessionState)

// WithClock sets the clock used by quiz pacing.
func WithClock(c clock.Clock) Option {
	return func(s *SessionState) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *SessionState) { s.log = l }
}

// WithEventRepo records session activity.
func WithEventRepo(r store.EventRepo) Option {
	return func(s *SessionState) { s.EventRepo = r }
}

// WithMedia replaces the simulated timeline, e.g. to block autoplay.
func WithMedia(m *playback.SimulatedMedia) Option {
	return func(s *SessionState) { s.Media = m }
}

// NewSessionState creates a session in PhaseVideo for level.
func NewSessionState(level api.Level, sessionID string, cfg Config, opts ...Option) *SessionState {
	def := DefaultConfig()
	if cfg.SegmentCount < 1 {
		cfg.SegmentCount = def.SegmentCount
	}
	if cfg.SeekTolerance < 0 {
		cfg.SeekTolerance = def.SeekTolerance
	}
	if cfg.PassRatio <= 0 || cfg.PassRatio > 1 {
		cfg.PassRatio = def.PassRatio
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}

	s := &SessionState{
		SessionID: sessionID,
		Level:     level,
		Config:    cfg,
		Phase:     PhaseVideo,
		Visited:   map[Phase]bool{PhaseVideo: true},
		reports:   make(map[ReportKind]*reportState),
		clock:     clock.Real{},
		log:       logger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("session_id", sessionID, "level_id", level.ID)
	s.StartTime = s.clock.Now()

	total := level.TotalDuration(cfg.DefaultDuration)
	if s.Media == nil {
		s.Media = playback.NewSimulatedMedia(total, false)
	}
	gate := playback.NewGate(s.Media, total, cfg.SegmentCount,
		playback.WithTolerance(cfg.SeekTolerance),
		playback.WithLogger(s.log),
	)
	s.Runner = progression.NewRunner(gate, level.Questions, s.clock, s.log)
	return s
}

// Elapsed returns the time since the session started.
func (s *SessionState) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.StartTime)
}

// Segment returns the current segment index and the segment count.
func (s *SessionState) Segment() (int, int) {
	c := s.Runner.Controller()
	return c.Index(), c.Count()
}
