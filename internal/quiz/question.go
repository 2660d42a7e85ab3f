// Package quiz holds segment questions, the single-question challenge shown
// at each segment boundary, and the practice quiz of a level.
package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	MinOptions = 2
	MaxOptions = 6
)

// Options is the ordered answer list of a question. The backend sends it
// either as a JSON array or as a single "A|B|C" string.
type Options []string

func (o *Options) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*o = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("options: want array or pipe-separated string: %w", err)
	}
	if joined == "" {
		*o = Options{}
		return nil
	}
	parts := strings.Split(joined, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	*o = parts
	return nil
}

// Question is one multiple-choice question of a level.
type Question struct {
	ID           int     `json:"id"`
	SegmentIndex *int    `json:"segment_index,omitempty"`
	Text         string  `json:"text"`
	Options      Options `json:"options"`
	CorrectIndex int     `json:"correct_index"`
	Difficulty   int     `json:"difficulty,omitempty"`
}

// Valid reports whether the question can be shown and graded.
func (q Question) Valid() bool {
	n := len(q.Options)
	return q.Text != "" && n >= MinOptions && n <= MaxOptions &&
		q.CorrectIndex >= 0 && q.CorrectIndex < n
}

// IsPlaceholder reports whether q was produced by Placeholder.
func (q Question) IsPlaceholder() bool { return q.ID == placeholderID }

const placeholderID = -1

// FindQuestionForSegment looks up the question gating segment index: first a
// question tagged with that segment, then the question at that position.
// Invalid questions are never returned.
func FindQuestionForSegment(questions []Question, index int) (Question, bool) {
	pos, ok := segmentPosition(questions, index)
	if !ok {
		return Question{}, false
	}
	return questions[pos], true
}

func segmentPosition(questions []Question, index int) (int, bool) {
	for pos, q := range questions {
		if q.SegmentIndex != nil && *q.SegmentIndex == index && q.Valid() {
			return pos, true
		}
	}
	return positional(questions, index)
}

// positional returns the slice position used as the positional fallback for
// segment index, skipping questions explicitly tagged for another segment.
func positional(questions []Question, index int) (int, bool) {
	if index < 0 || index >= len(questions) {
		return 0, false
	}
	q := questions[index]
	if q.SegmentIndex != nil && *q.SegmentIndex != index {
		return 0, false
	}
	if !q.Valid() {
		return 0, false
	}
	return index, true
}

// Placeholder is shown when a segment has no usable question. Its first
// option is correct so the flow can never deadlock on missing content.
func Placeholder(index int) Question {
	seg := index
	return Question{
		ID:           placeholderID,
		SegmentIndex: &seg,
		Text:         "Ready to keep going? Confirm you watched this part of the video.",
		Options:      Options{"Yes, let's continue", "Not yet"},
		CorrectIndex: 0,
	}
}

// ForSegment returns the question for segment index, or the placeholder.
func ForSegment(questions []Question, index int) Question {
	if q, ok := FindQuestionForSegment(questions, index); ok {
		return q
	}
	return Placeholder(index)
}
