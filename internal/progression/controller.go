// Package progression is the segment state machine of a lesson video: watch
// a segment, answer its quiz, then advance or replay.
//
// The controller performs no I/O. Handle returns effects which the caller
// applies to the playback gate, the quiz overlay and its timers.
package progression

import (
	"fmt"
	"time"

	"github.com/ecoloop/ecoloop/internal/segment"
)

// RestartResetDelay is how long the restart flag stays set after a replay is
// triggered, so a later replay of the same segment is observed as a change.
const RestartResetDelay = 500 * time.Millisecond

// State is the controller state for the current segment.
type State int

const (
	StatePlaying State = iota
	StateQuizPending
	StateCorrectWait
	StateIncorrectWait
	StateAllSegmentsDone
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateQuizPending:
		return "quizPending"
	case StateCorrectWait:
		return "correctWait"
	case StateIncorrectWait:
		return "incorrectWait"
	case StateAllSegmentsDone:
		return "allSegmentsDone"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is an input to the controller.
type Event interface{ isEvent() }

// SegmentComplete is emitted by the gate when the segment boundary is reached.
type SegmentComplete struct{}

// QuizSubmitted is emitted when the learner locks an answer.
type QuizSubmitted struct{ Correct bool }

// QuizCorrect is emitted after the correct-verdict delay elapsed.
type QuizCorrect struct{}

// QuizIncorrect is emitted after the incorrect-verdict delay elapsed.
type QuizIncorrect struct{}

// RestartSettled is delivered RestartResetDelay after a replay started.
type RestartSettled struct{}

// VideoComplete is emitted by the gate at the natural end of the video.
type VideoComplete struct{}

func (SegmentComplete) isEvent() {}
func (QuizSubmitted) isEvent()   {}
func (QuizCorrect) isEvent()     {}
func (QuizIncorrect) isEvent()   {}
func (RestartSettled) isEvent()  {}
func (VideoComplete) isEvent()   {}

// Effect is an instruction for the caller.
type Effect interface{ isEffect() }

// ShowQuiz opens the blocking quiz overlay for Segment.
type ShowQuiz struct{ Segment int }

// HideQuiz closes the quiz overlay.
type HideQuiz struct{}

// RestartSegment rewinds playback to the start of Segment and resumes.
type RestartSegment struct{ Segment int }

// ResumePlayback moves the gate to Segment and resumes if paused.
type ResumePlayback struct{ Segment int }

// ScheduleRestartReset asks for a RestartSettled event after After.
type ScheduleRestartReset struct{ After time.Duration }

// VideoDone signals that every segment was passed and the video ended.
type VideoDone struct{}

func (ShowQuiz) isEffect()             {}
func (HideQuiz) isEffect()             {}
func (RestartSegment) isEffect()       {}
func (ResumePlayback) isEffect()       {}
func (ScheduleRestartReset) isEffect() {}
func (VideoDone) isEffect()            {}

// Controller owns the current segment index and the restart flag.
type Controller struct {
	count      int
	index      int
	restarting bool
	state      State
	done       bool

	// transitions counts applied transitions, for logging and tests.
	transitions int
}

// New creates a controller for count segments, starting at segment 0.
func New(count int) *Controller {
	if count < 1 {
		count = segment.DefaultCount
	}
	return &Controller{count: count}
}

func (c *Controller) Index() int        { return c.index }
func (c *Controller) Count() int        { return c.count }
func (c *Controller) Restarting() bool  { return c.restarting }
func (c *Controller) State() State      { return c.state }
func (c *Controller) Transitions() int  { return c.transitions }
func (c *Controller) last() int         { return segment.Last(c.count) }
func (c *Controller) QuizVisible() bool { return c.state >= StateQuizPending && c.state <= StateIncorrectWait }

// Done reports whether VideoDone has been emitted.
func (c *Controller) Done() bool { return c.done }

// Handle applies ev and returns the resulting effects. Events that do not
// apply to the current state are ignored.
func (c *Controller) Handle(ev Event) []Effect {
	switch ev := ev.(type) {
	case SegmentComplete:
		if c.state != StatePlaying {
			return nil
		}
		return c.to(StateQuizPending, ShowQuiz{Segment: c.index})

	case QuizSubmitted:
		if c.state != StateQuizPending {
			return nil
		}
		if ev.Correct {
			return c.to(StateCorrectWait)
		}
		return c.to(StateIncorrectWait)

	case QuizCorrect:
		if c.state != StateCorrectWait {
			return nil
		}
		if c.index >= c.last() {
			return c.to(StateAllSegmentsDone, HideQuiz{})
		}
		c.index++
		return c.to(StatePlaying, HideQuiz{}, ResumePlayback{Segment: c.index})

	case QuizIncorrect:
		if c.state != StateIncorrectWait {
			return nil
		}
		c.restarting = true
		return c.to(StatePlaying,
			HideQuiz{},
			RestartSegment{Segment: c.index},
			ScheduleRestartReset{After: RestartResetDelay},
		)

	case RestartSettled:
		c.restarting = false
		return nil

	case VideoComplete:
		// Before the last segment the boundary has priority over ended.
		if c.index < c.last() || c.done {
			return nil
		}
		if c.state != StatePlaying && c.state != StateAllSegmentsDone {
			return nil
		}
		c.done = true
		return c.to(StateAllSegmentsDone, VideoDone{})
	}
	return nil
}

func (c *Controller) to(s State, effects ...Effect) []Effect {
	c.state = s
	c.transitions++
	return effects
}
