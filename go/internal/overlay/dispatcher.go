package overlay

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MrDemonWolf/wolfwave-sub002/go/internal/nowplaying"
)

// TrackStore holds the current track metadata on behalf of the render feed.
// The dispatcher replaces it on full reports and merges partial updates into
// it.
type TrackStore interface {
	SetTrack(track nowplaying.Track)
	UpdateTrack(update nowplaying.StateUpdate)
}

// Dispatcher parses inbound frames and routes each recognized event to the
// clock extrapolator and visibility controller. It runs on the connection's
// single read goroutine, so dispatch order is arrival order.
//
// Malformed frames and unknown event types are dropped without error: this
// channel drives a live overlay and a single bad frame must never take it
// down. The next authoritative event self-corrects state.
type Dispatcher struct {
	clock      *Extrapolator
	visibility *VisibilityController
	tracks     TrackStore
}

// NewDispatcher creates a dispatcher routing to the given consumers.
func NewDispatcher(clock *Extrapolator, visibility *VisibilityController, tracks TrackStore) *Dispatcher {
	return &Dispatcher{
		clock:      clock,
		visibility: visibility,
		tracks:     tracks,
	}
}

// Dispatch handles one raw text frame received at the given instant.
func (d *Dispatcher) Dispatch(raw []byte, receivedAt time.Time) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Debug().Err(err).Msg("discarding unparseable frame")
		return
	}

	payload, err := ParseEventPayload(&envelope)
	if err != nil {
		log.Debug().
			Err(err).
			Str("event_type", string(envelope.Type)).
			Msg("discarding frame with bad payload")
		return
	}

	switch p := payload.(type) {
	case nowplaying.Track:
		d.handleNowPlaying(p, receivedAt)
	case nowplaying.ProgressSample:
		d.handleProgress(p, receivedAt)
	case nowplaying.StateUpdate:
		d.handlePlaybackState(p, receivedAt)
	default:
		if envelope.Type == EventTypeWelcome {
			log.Debug().Msg("welcome frame received")
			return
		}
		log.Debug().Str("event_type", string(envelope.Type)).Msg("ignoring unknown event type")
	}
}

// handleNowPlaying applies a full report: the anchor resets to the reported
// position and the overlay shows when the track is playing.
func (d *Dispatcher) handleNowPlaying(track nowplaying.Track, receivedAt time.Time) {
	log.Debug().
		Str("title", track.Title).
		Str("artist", track.Artist).
		Float64("elapsed", track.Elapsed).
		Bool("playing", track.Playing).
		Msg("now playing")

	d.tracks.SetTrack(track)
	d.clock.Apply(track.Elapsed, track.Playing, receivedAt)
	if track.Playing {
		d.visibility.Show()
	}
}

// handleProgress corrects the anchor without touching metadata or
// visibility. The jump to the reported position is instantaneous; no
// smoothing toward it. The reported duration refreshes the clamp bound on
// the stored track, so a track change announced only through progress
// frames does not leave the render feed clamping against the old length.
func (d *Dispatcher) handleProgress(sample nowplaying.ProgressSample, receivedAt time.Time) {
	if sample.Duration > 0 {
		d.tracks.UpdateTrack(nowplaying.StateUpdate{
			Playing:  sample.Playing,
			Duration: &sample.Duration,
			Elapsed:  &sample.Elapsed,
		})
	}
	d.clock.Apply(sample.Elapsed, sample.Playing, receivedAt)
}

// handlePlaybackState flips play/pause. Pausing hides the overlay
// immediately, ahead of any pending auto-hide countdown, and freezes the
// extrapolated position where it stands.
func (d *Dispatcher) handlePlaybackState(update nowplaying.StateUpdate, receivedAt time.Time) {
	d.tracks.UpdateTrack(update)

	if update.Elapsed != nil {
		d.clock.Apply(*update.Elapsed, update.Playing, receivedAt)
	} else {
		d.clock.SetPlaying(update.Playing, receivedAt)
	}

	if update.Playing {
		d.visibility.Show()
	} else {
		d.visibility.Hide()
	}
}
