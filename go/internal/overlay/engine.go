package overlay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/MrDemonWolf/wolfwave-sub002/go/internal/nowplaying"
)

// Config holds configuration for the synchronization engine.
type Config struct {
	// SourceURL is the ws:// endpoint of the playback source.
	SourceURL string
	// AutoHide hides the overlay this long after it was last shown.
	// Zero means show indefinitely until explicitly hidden.
	AutoHide time.Duration
	// HideArtwork blanks artwork URLs in snapshots.
	HideArtwork bool
	// RetryDelay overrides the reconnect delay. Zero means the default.
	RetryDelay time.Duration
}

// Snapshot is the read-only state the render feed polls once per frame. The
// engine never pushes; it only derives this on demand.
type Snapshot struct {
	DisplayedElapsed float64          `json:"displayed_elapsed"`
	Duration         float64          `json:"duration"`
	Playing          bool             `json:"playing"`
	Visibility       string           `json:"visibility"`
	Connection       string           `json:"connection"`
	Track            nowplaying.Track `json:"track"`
}

// Engine is the client-side synchronization core: it owns the connection to
// the playback source, routes its events, extrapolates the playback position
// between them, and drives overlay visibility.
type Engine struct {
	config     Config
	clock      clockwork.Clock
	extrap     *Extrapolator
	visibility *VisibilityController
	dispatcher *Dispatcher
	conn       *ConnectionManager

	mu    sync.Mutex
	track nowplaying.Track

	startOnce    sync.Once
	shutdownOnce sync.Once
}

// NewEngine wires the engine's components together. Nothing connects until
// Start.
func NewEngine(config Config, clock clockwork.Clock) *Engine {
	e := &Engine{
		config:     config,
		clock:      clock,
		extrap:     NewExtrapolator(),
		visibility: NewVisibilityController(clock, config.AutoHide),
	}
	e.dispatcher = NewDispatcher(e.extrap, e.visibility, e)

	connConfig := DefaultConnConfig(config.SourceURL)
	if config.RetryDelay > 0 {
		connConfig.RetryDelay = config.RetryDelay
	}
	e.conn = NewConnectionManager(connConfig, clock, e.dispatcher.Dispatch)

	return e
}

// Start begins connecting to the playback source. Safe to call once;
// repeated calls are no-ops.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		log.Info().
			Str("source_url", e.config.SourceURL).
			Dur("auto_hide", e.config.AutoHide).
			Msg("overlay engine starting")
		e.conn.Connect()
	})
}

// Shutdown releases every resource the engine holds: pending reconnect and
// auto-hide timers are cancelled and the active connection is closed.
// conn.Close blocks until the read pump exits, so by the time the
// visibility controller is frozen no frame can still be in dispatch.
// Idempotent, and safe to call even if Start never ran.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.conn.Close()
		e.visibility.Close()
		log.Info().Msg("overlay engine shut down")
	})
}

// Snapshot derives the render feed state as of now. The extrapolated
// position is clamped to the track duration here, at the render boundary;
// the extrapolator itself never clamps.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	e.mu.Lock()
	track := e.track
	e.mu.Unlock()

	if e.config.HideArtwork {
		track.ArtworkURL = ""
	}

	elapsed := e.extrap.Estimate(now)
	if track.Duration > 0 && elapsed > track.Duration {
		elapsed = track.Duration
	}

	return Snapshot{
		DisplayedElapsed: elapsed,
		Duration:         track.Duration,
		Playing:          e.extrap.Playing(),
		Visibility:       e.visibility.State().String(),
		Connection:       e.conn.State().String(),
		Track:            track,
	}
}

// ConnectionState returns the current transport state for diagnostics.
func (e *Engine) ConnectionState() ConnState {
	return e.conn.State()
}

// SetTrack replaces the held metadata with a full report.
func (e *Engine) SetTrack(track nowplaying.Track) {
	e.mu.Lock()
	e.track = track
	e.mu.Unlock()
}

// UpdateTrack merges a partial update into the held metadata.
func (e *Engine) UpdateTrack(update nowplaying.StateUpdate) {
	e.mu.Lock()
	update.MergeInto(&e.track)
	e.mu.Unlock()
}
