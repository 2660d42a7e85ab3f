package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/ecoloop/ecoloop/internal/clock"
)

// Verdict display delays. The learner sees which option was right or wrong
// for this long before the flow reacts.
const (
	CorrectDelay   = 1500 * time.Millisecond
	IncorrectDelay = 2000 * time.Millisecond
)

// ErrLocked is returned when a submitted challenge is changed again.
var ErrLocked = errors.New("answer already submitted")

// ValidationError reports an answer that cannot be accepted as given.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Outcome is the terminal result of a challenge.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	default:
		return "none"
	}
}

// Verdict is returned by Submit.
type Verdict struct {
	Correct bool
	Delay   time.Duration
}

// Outcome maps the verdict to the outcome it resolves to.
func (v Verdict) Outcome() Outcome {
	if v.Correct {
		return OutcomeCorrect
	}
	return OutcomeIncorrect
}

// Challenge is one question shown as a blocking overlay. It moves from
// unanswered to submitted to resolved and is never reused.
type Challenge struct {
	question Question
	clock    clock.Clock

	selected    int
	submitted   bool
	correct     bool
	submittedAt time.Time
	resolved    bool
}

// NewChallenge creates a challenge for q. A nil clock uses the system clock.
func NewChallenge(q Question, clk clock.Clock) *Challenge {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Challenge{question: q, clock: clk, selected: -1}
}

func (c *Challenge) Question() Question { return c.question }

// Selected returns the selected option, or -1.
func (c *Challenge) Selected() int { return c.selected }

func (c *Challenge) Submitted() bool { return c.submitted }

// Correct reports the verdict. Only meaningful once submitted.
func (c *Challenge) Correct() bool { return c.correct }

// Select stores the chosen option. It fails once the answer is submitted.
func (c *Challenge) Select(index int) error {
	if c.submitted {
		return ErrLocked
	}
	if index < 0 || index >= len(c.question.Options) {
		return &ValidationError{Field: "answer", Reason: fmt.Sprintf("option %d out of range", index)}
	}
	c.selected = index
	return nil
}

// Submit locks the answer and grades it. The returned delay is how long
// the verdict stays on screen before Resolve yields the outcome.
func (c *Challenge) Submit() (Verdict, error) {
	if c.submitted {
		return Verdict{}, ErrLocked
	}
	if c.selected < 0 {
		return Verdict{}, &ValidationError{Field: "answer", Reason: "select an option first"}
	}
	c.submitted = true
	c.submittedAt = c.clock.Now()
	c.correct = c.selected == c.question.CorrectIndex
	return c.verdict(), nil
}

func (c *Challenge) verdict() Verdict {
	if c.correct {
		return Verdict{Correct: true, Delay: CorrectDelay}
	}
	return Verdict{Correct: false, Delay: IncorrectDelay}
}

// Remaining returns how long until the outcome can be resolved.
func (c *Challenge) Remaining() time.Duration {
	if !c.submitted {
		return 0
	}
	left := c.verdict().Delay - c.clock.Now().Sub(c.submittedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Resolve returns the outcome once the verdict delay has elapsed. It
// reports true exactly once; later calls return the outcome with false.
func (c *Challenge) Resolve() (Outcome, bool) {
	if !c.submitted || c.Remaining() > 0 {
		return OutcomeNone, false
	}
	out := c.verdict().Outcome()
	if c.resolved {
		return out, false
	}
	c.resolved = true
	return out, true
}

// Resolved reports whether Resolve has delivered the outcome.
func (c *Challenge) Resolved() bool { return c.resolved }
