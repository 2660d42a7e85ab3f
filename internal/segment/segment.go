// Package segment splits a lesson video into equal-width, quiz-gated windows.
package segment

// DefaultCount is the number of segments a lesson video is divided into.
const DefaultCount = 5

// Window is the half-open time range [Start, End) of one segment, in seconds.
type Window struct {
	Index int
	Start float64
	End   float64
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Width returns the window length in seconds.
func (w Window) Width() float64 {
	return w.End - w.Start
}

// Bounds returns the window of segment index for a video of total seconds
// split into count equal segments. Index is clamped to [0, count-1] and a
// non-positive count is treated as a single segment.
func Bounds(total float64, count, index int) Window {
	if count < 1 {
		count = 1
	}
	if index < 0 {
		index = 0
	}
	if index > count-1 {
		index = count - 1
	}
	width := total / float64(count)
	return Window{
		Index: index,
		Start: float64(index) * width,
		End:   float64(index+1) * width,
	}
}

// IndexAt returns the segment that contains t. Times before zero map to the
// first segment and times at or past the end map to the last.
func IndexAt(total float64, count int, t float64) int {
	if count < 1 || total <= 0 || t <= 0 {
		return 0
	}
	i := int(t / (total / float64(count)))
	if i > count-1 {
		i = count - 1
	}
	return i
}

// Last returns the index of the final segment.
func Last(count int) int {
	if count < 1 {
		return 0
	}
	return count - 1
}

// All returns every window of the video in order.
func All(total float64, count int) []Window {
	if count < 1 {
		count = 1
	}
	out := make([]Window, count)
	for i := range count {
		out[i] = Bounds(total, count, i)
	}
	return out
}
