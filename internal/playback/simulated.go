package playback

import (
	"errors"
	"math"
)

// ErrAutoplayBlocked is returned by Play when programmatic playback is not
// allowed yet.
var ErrAutoplayBlocked = errors.New("autoplay blocked until user interaction")

// SimulatedMedia is a playback timeline without any actual rendering. The
// terminal client advances it from a ticker in place of a video element.
type SimulatedMedia struct {
	duration      float64
	position      float64
	paused        bool
	blockAutoplay bool
	activated     bool
}

// NewSimulatedMedia creates a paused timeline of the given length. When
// blockAutoplay is set, Play fails until Activate is called.
func NewSimulatedMedia(duration float64, blockAutoplay bool) *SimulatedMedia {
	return &SimulatedMedia{
		duration:      duration,
		paused:        true,
		blockAutoplay: blockAutoplay,
	}
}

// Activate records a user gesture. Like browser user activation it is sticky.
func (m *SimulatedMedia) Activate() { m.activated = true }

func (m *SimulatedMedia) Play() error {
	if m.blockAutoplay && !m.activated {
		return ErrAutoplayBlocked
	}
	if m.position >= m.duration {
		m.position = 0
	}
	m.paused = false
	return nil
}

func (m *SimulatedMedia) Pause() { m.paused = true }

func (m *SimulatedMedia) Seek(seconds float64) {
	m.position = math.Max(0, math.Min(m.duration, seconds))
}

func (m *SimulatedMedia) Position() float64 { return m.position }
func (m *SimulatedMedia) Duration() float64 { return m.duration }
func (m *SimulatedMedia) Paused() bool      { return m.paused }

// Advance moves the playhead by dt seconds if playing and reports whether
// the end of the media was reached on this step.
func (m *SimulatedMedia) Advance(dt float64) bool {
	if m.paused {
		return false
	}
	m.position += dt
	if m.position >= m.duration {
		m.position = m.duration
		m.paused = true
		return true
	}
	return false
}
