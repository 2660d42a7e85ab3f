// Package playback enforces segment boundaries on a single media resource.
package playback

import (
	"math"

	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/segment"
)

const (
	// DefaultSeekTolerance is how far past a segment end the position may
	// run before the gate snaps it back.
	DefaultSeekTolerance = 0.5

	// SnapEpsilon is how far before the segment end a snapped position lands.
	SnapEpsilon = 0.05
)

// Media is the playback resource the gate drives.
type Media interface {
	// Play starts or resumes playback. It fails when the environment
	// refuses programmatic playback.
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	Duration() float64
	Paused() bool
}

// Event is emitted by the gate in response to media callbacks.
type Event int

const (
	EventNone Event = iota
	EventSegmentComplete
	EventVideoComplete
)

func (e Event) String() string {
	switch e {
	case EventSegmentComplete:
		return "segmentComplete"
	case EventVideoComplete:
		return "videoComplete"
	default:
		return "none"
	}
}

// Gate pauses playback at segment boundaries and keeps the learner from
// seeking past the segment they have not yet been quizzed on.
type Gate struct {
	media     Media
	total     float64
	count     int
	tolerance float64
	log       *logger.Logger

	index    int
	progress float64

	// boundaryHit is set once segmentComplete fired for the current index
	// and cleared when the segment restarts or advances.
	boundaryHit bool

	// restarted is set after RestartSegment and cleared once playback
	// moves away from the segment start.
	restarted bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithTolerance overrides DefaultSeekTolerance.
func WithTolerance(seconds float64) Option {
	return func(g *Gate) { g.tolerance = seconds }
}

// WithLogger sets the logger used for swallowed playback failures.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// NewGate creates a gate for a video of total seconds split into count
// segments. A non-positive total falls back to the media duration.
func NewGate(media Media, total float64, count int, opts ...Option) *Gate {
	if total <= 0 {
		total = media.Duration()
	}
	if count < 1 {
		count = segment.DefaultCount
	}
	g := &Gate{
		media:     media,
		total:     total,
		count:     count,
		tolerance: DefaultSeekTolerance,
		log:       logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Index returns the segment the gate currently enforces.
func (g *Gate) Index() int { return g.index }

// Count returns the number of segments.
func (g *Gate) Count() int { return g.count }

// Total returns the video length used for segmentation.
func (g *Gate) Total() float64 { return g.total }

// Progress returns playback progress in percent, clamped to [0, 100].
func (g *Gate) Progress() float64 { return g.progress }

// Window returns the current segment window.
func (g *Gate) Window() segment.Window {
	return segment.Bounds(g.total, g.count, g.index)
}

// AwaitingQuiz reports whether the current segment's boundary was reached
// and the gate is holding playback for a quiz.
func (g *Gate) AwaitingQuiz() bool { return g.boundaryHit }

func (g *Gate) last() int { return segment.Last(g.count) }

// OnTimeUpdate handles a playback position tick.
func (g *Gate) OnTimeUpdate(t float64) Event {
	w := g.Window()

	if t > w.End+g.tolerance {
		snapped := w.End - SnapEpsilon
		g.log.Debug("seek past segment end snapped back", "segment", g.index, "position", t, "snapped_to", snapped)
		g.media.Seek(snapped)
		g.setProgress(snapped)
		return EventNone
	}

	if g.restarted && t > w.Start+SnapEpsilon {
		g.restarted = false
	}

	if g.index < g.last() && t >= w.End {
		g.setProgress(t)
		if g.boundaryHit {
			return EventNone
		}
		g.media.Pause()
		g.boundaryHit = true
		return EventSegmentComplete
	}

	g.setProgress(t)
	return EventNone
}

// OnEnded handles the media reaching its natural end. Before the last
// segment the boundary takes priority over the end of the video.
func (g *Gate) OnEnded() Event {
	if g.index >= g.last() {
		g.progress = 100
		return EventVideoComplete
	}

	w := g.Window()
	snapped := w.End - SnapEpsilon
	g.media.Seek(snapped)
	g.media.Pause()
	g.setProgress(snapped)
	if g.boundaryHit {
		return EventNone
	}
	g.boundaryHit = true
	return EventSegmentComplete
}

// RestartSegment rewinds to the start of the current segment and resumes.
// Calling it again while still at the start does nothing.
func (g *Gate) RestartSegment() {
	w := g.Window()
	g.boundaryHit = false
	if g.restarted && math.Abs(g.media.Position()-w.Start) <= SnapEpsilon {
		return
	}
	g.restarted = true
	g.media.Seek(w.Start)
	g.setProgress(w.Start)
	g.resume("restart")
}

// ResumeIfAdvanced moves the gate to index and resumes paused playback when
// the index increased. The initial segment never auto-plays.
func (g *Gate) ResumeIfAdvanced(index int) {
	if index <= g.index {
		return
	}
	if index > g.last() {
		index = g.last()
	}
	g.index = index
	g.boundaryHit = false
	g.restarted = false
	if g.media.Paused() {
		g.resume("advance")
	}
}

// UserPlay resumes playback on explicit user request. It is refused while
// a quiz is pending for the current segment.
func (g *Gate) UserPlay() bool {
	if g.boundaryHit {
		return false
	}
	if err := g.media.Play(); err != nil {
		g.log.Warn("user play failed", "segment", g.index, "error", err)
		return false
	}
	return true
}

// UserPause pauses playback on explicit user request.
func (g *Gate) UserPause() {
	g.media.Pause()
}

func (g *Gate) resume(reason string) {
	if err := g.media.Play(); err != nil {
		g.log.Warn("autoplay rejected, waiting for manual resume", "reason", reason, "segment", g.index, "error", err)
	}
}

func (g *Gate) setProgress(t float64) {
	d := g.media.Duration()
	if d <= 0 {
		d = g.total
	}
	if d <= 0 {
		g.progress = 0
		return
	}
	p := t / d * 100
	g.progress = math.Max(0, math.Min(100, p))
}
