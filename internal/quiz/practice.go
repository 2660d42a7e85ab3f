package quiz

import (
	"fmt"
	"strings"
)

// DefaultPassRatio is the share of practice answers that must be correct.
const DefaultPassRatio = 0.6

// Policy decides which questions the practice quiz draws from.
type Policy string

const (
	// PolicyShared reuses the whole bank, including segment questions.
	PolicyShared Policy = "shared"
	// PolicyDisjoint excludes questions already asked at segment boundaries.
	PolicyDisjoint Policy = "disjoint"
)

// ParsePolicy parses a policy name. The empty string is PolicyShared.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyShared:
		return PolicyShared, nil
	case PolicyDisjoint:
		return PolicyDisjoint, nil
	default:
		return "", fmt.Errorf("unknown practice question policy %q", s)
	}
}

// PracticeSet selects the practice questions of a level. A disjoint set
// that would be empty falls back to the full bank.
func PracticeSet(questions []Question, segments int, policy Policy) []Question {
	valid := make([]Question, 0, len(questions))
	used := make(map[int]bool)
	if policy == PolicyDisjoint {
		for i := range segments {
			if pos, ok := segmentPosition(questions, i); ok {
				used[pos] = true
			}
		}
	}
	for pos, q := range questions {
		if q.Valid() && !used[pos] {
			valid = append(valid, q)
		}
	}
	if len(valid) == 0 && policy == PolicyDisjoint {
		return PracticeSet(questions, segments, PolicyShared)
	}
	return valid
}

// PracticeResult is the graded outcome of one practice attempt.
type PracticeResult struct {
	Correct int
	Total   int
	Passed  bool
}

// Practice is the non-segmented quiz of a level. Retry starts a new
// attempt over the same questions.
type Practice struct {
	questions []Question
	answers   []int
	passRatio float64
	submitted bool
	attempts  int
}

// NewPractice creates a practice quiz. A ratio outside (0, 1] uses
// DefaultPassRatio.
func NewPractice(questions []Question, passRatio float64) *Practice {
	if passRatio <= 0 || passRatio > 1 {
		passRatio = DefaultPassRatio
	}
	p := &Practice{questions: questions, passRatio: passRatio, attempts: 1}
	p.reset()
	return p
}

func (p *Practice) reset() {
	p.answers = make([]int, len(p.questions))
	for i := range p.answers {
		p.answers[i] = -1
	}
	p.submitted = false
}

func (p *Practice) Questions() []Question { return p.questions }

// Attempts returns the number of attempts started, including the current one.
func (p *Practice) Attempts() int { return p.attempts }

// Answer records option for question i.
func (p *Practice) Answer(i, option int) error {
	if p.submitted {
		return ErrLocked
	}
	if i < 0 || i >= len(p.questions) {
		return &ValidationError{Field: "question", Reason: fmt.Sprintf("question %d out of range", i)}
	}
	if option < 0 || option >= len(p.questions[i].Options) {
		return &ValidationError{Field: "answer", Reason: fmt.Sprintf("option %d out of range", option)}
	}
	p.answers[i] = option
	return nil
}

// AnswerOf returns the recorded option for question i, or -1.
func (p *Practice) AnswerOf(i int) int {
	if i < 0 || i >= len(p.answers) {
		return -1
	}
	return p.answers[i]
}

// Answered returns how many questions have an answer.
func (p *Practice) Answered() int {
	n := 0
	for _, a := range p.answers {
		if a >= 0 {
			n++
		}
	}
	return n
}

// Submit grades the attempt. Every question must be answered. An empty
// practice set passes.
func (p *Practice) Submit() (PracticeResult, error) {
	if p.submitted {
		return PracticeResult{}, ErrLocked
	}
	if missing := len(p.questions) - p.Answered(); missing > 0 {
		return PracticeResult{}, &ValidationError{Field: "answers", Reason: fmt.Sprintf("%d question(s) unanswered", missing)}
	}
	p.submitted = true

	res := PracticeResult{Total: len(p.questions)}
	for i, q := range p.questions {
		if p.answers[i] == q.CorrectIndex {
			res.Correct++
		}
	}
	if res.Total == 0 {
		res.Passed = true
		return res, nil
	}
	res.Passed = float64(res.Correct)/float64(res.Total)+1e-9 >= p.passRatio
	return res, nil
}

// Retry discards the current answers and starts a new attempt.
func (p *Practice) Retry() {
	p.reset()
	p.attempts++
}
