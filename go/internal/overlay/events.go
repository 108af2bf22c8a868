package overlay

import (
	"encoding/json"

	"github.com/MrDemonWolf/wolfwave-sub002/go/internal/nowplaying"
)

// Envelope is the wire structure for all playback events: one JSON object
// per text frame with a type tag and a type-specific payload.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventType represents the type of playback event.
type EventType string

const (
	EventTypeWelcome       EventType = "welcome"
	EventTypeNowPlaying    EventType = "now_playing"
	EventTypeProgress      EventType = "progress"
	EventTypePlaybackState EventType = "playback_state"
)

// ParseEventPayload parses event data into the appropriate payload struct.
// Unknown event types return (nil, nil) so the caller can skip them without
// treating the frame as an error.
func ParseEventPayload(event *Envelope) (interface{}, error) {
	switch event.Type {
	case EventTypeWelcome:
		// Liveness confirmation only; carries no payload worth decoding.
		return nil, nil

	case EventTypeNowPlaying:
		var payload nowplaying.Track
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeProgress:
		var payload nowplaying.ProgressSample
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePlaybackState:
		var payload nowplaying.StateUpdate
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
