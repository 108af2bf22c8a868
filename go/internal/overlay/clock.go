package overlay

import (
	"sync"
	"time"
)

// anchor is the most recent authoritative playback position plus the
// wall-clock instant it was captured. It is replaced as a unit, never
// mutated field by field.
type anchor struct {
	value      float64
	capturedAt time.Time
	playing    bool
}

// Extrapolator synthesizes a continuously advancing playback position from
// periodic authoritative reports. Between reports the position advances at
// real-time rate; every report resets accumulated drift to zero.
type Extrapolator struct {
	mu     sync.Mutex
	anchor anchor
}

// NewExtrapolator returns an extrapolator with a zero anchor (position 0,
// not playing).
func NewExtrapolator() *Extrapolator {
	return &Extrapolator{}
}

// Apply replaces the anchor with an authoritative sample captured at now.
func (e *Extrapolator) Apply(value float64, playing bool, now time.Time) {
	e.mu.Lock()
	e.anchor = anchor{value: value, capturedAt: now, playing: playing}
	e.mu.Unlock()
}

// SetPlaying flips the playing flag without moving the position. The current
// estimate at now becomes the new anchor value so that pausing freezes the
// position where the viewer last saw it, and resuming advances from there.
func (e *Extrapolator) SetPlaying(playing bool, now time.Time) {
	e.mu.Lock()
	e.anchor = anchor{value: e.estimateLocked(now), capturedAt: now, playing: playing}
	e.mu.Unlock()
}

// Estimate returns the extrapolated playback position at now. Paused anchors
// are returned unchanged; playing anchors advance linearly by the wall-clock
// time since capture. No clamping to track duration happens here; the render
// boundary clamps as min(estimate, duration).
func (e *Extrapolator) Estimate(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimateLocked(now)
}

// Playing reports the anchor's playing flag.
func (e *Extrapolator) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anchor.playing
}

func (e *Extrapolator) estimateLocked(now time.Time) float64 {
	if !e.anchor.playing {
		return e.anchor.value
	}
	return e.anchor.value + now.Sub(e.anchor.capturedAt).Seconds()
}
