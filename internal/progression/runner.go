package progression

import (
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/playback"
	"github.com/ecoloop/ecoloop/internal/quiz"
)

// Runner wires a Controller to a playback gate and the quiz challenges of a
// level. It applies gate and quiz effects itself and returns every effect so
// the caller can schedule timers and react to VideoDone.
type Runner struct {
	ctrl      *Controller
	gate      *playback.Gate
	questions []quiz.Question
	clock     clock.Clock
	log       *logger.Logger

	challenge *quiz.Challenge
}

// NewRunner creates a runner. The controller and gate must use the same
// segment count.
func NewRunner(gate *playback.Gate, questions []quiz.Question, clk clock.Clock, log *logger.Logger) *Runner {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		ctrl:      New(gate.Count()),
		gate:      gate,
		questions: questions,
		clock:     clk,
		log:       log,
	}
}

func (r *Runner) Controller() *Controller { return r.ctrl }
func (r *Runner) Gate() *playback.Gate    { return r.gate }

// Challenge returns the open quiz, or nil when no overlay is shown.
func (r *Runner) Challenge() *quiz.Challenge { return r.challenge }

// OnTimeUpdate forwards a position tick through the gate.
func (r *Runner) OnTimeUpdate(t float64) []Effect {
	return r.fromGate(r.gate.OnTimeUpdate(t))
}

// OnEnded forwards the end of the media through the gate.
func (r *Runner) OnEnded() []Effect {
	return r.fromGate(r.gate.OnEnded())
}

func (r *Runner) fromGate(ev playback.Event) []Effect {
	switch ev {
	case playback.EventSegmentComplete:
		return r.dispatch(SegmentComplete{})
	case playback.EventVideoComplete:
		return r.dispatch(VideoComplete{})
	}
	return nil
}

// Select chooses an option on the open quiz.
func (r *Runner) Select(option int) error {
	if r.challenge == nil {
		return quiz.ErrLocked
	}
	return r.challenge.Select(option)
}

// Submit locks the open quiz answer and returns the verdict. The caller
// calls Resolve once the verdict delay has elapsed.
func (r *Runner) Submit() (quiz.Verdict, error) {
	if r.challenge == nil {
		return quiz.Verdict{}, quiz.ErrLocked
	}
	v, err := r.challenge.Submit()
	if err != nil {
		return v, err
	}
	r.log.Info("segment quiz answered", "segment", r.ctrl.Index(), "correct", v.Correct)
	r.dispatch(QuizSubmitted{Correct: v.Correct})
	return v, nil
}

// Resolve delivers the quiz outcome when its delay has elapsed. It returns
// nil when the delay is still running or there is nothing to resolve.
func (r *Runner) Resolve() []Effect {
	if r.challenge == nil {
		return nil
	}
	out, ok := r.challenge.Resolve()
	if !ok {
		return nil
	}
	if out == quiz.OutcomeCorrect {
		return r.dispatch(QuizCorrect{})
	}
	return r.dispatch(QuizIncorrect{})
}

// RestartSettled clears the restart flag.
func (r *Runner) RestartSettled() {
	r.dispatch(RestartSettled{})
}

func (r *Runner) dispatch(ev Event) []Effect {
	effects := r.ctrl.Handle(ev)
	for _, e := range effects {
		switch e := e.(type) {
		case ShowQuiz:
			q := quiz.ForSegment(r.questions, e.Segment)
			if q.IsPlaceholder() {
				r.log.Warn("no question for segment, using placeholder", "segment", e.Segment)
			}
			r.challenge = quiz.NewChallenge(q, r.clock)
		case HideQuiz:
			r.challenge = nil
		case RestartSegment:
			r.gate.RestartSegment()
		case ResumePlayback:
			r.gate.ResumeIfAdvanced(e.Segment)
		case VideoDone:
			r.log.Info("all segments passed")
		}
	}
	return effects
}
