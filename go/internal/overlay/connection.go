package overlay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnState describes the connection lifecycle. It drives the diagnostic
// status indicator only, never playback logic.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

// String returns the state name for logging and the status endpoint.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnConfig holds configuration for the playback source connection.
type ConnConfig struct {
	URL              string
	RetryDelay       time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
}

// DefaultConnConfig returns the connection defaults: 5s fixed reconnect
// delay, no backoff. The playback source is a local process that is
// expected to come back eventually, so the retry is indefinite and
// constant-interval.
func DefaultConnConfig(url string) ConnConfig {
	return ConnConfig{
		URL:              url,
		RetryDelay:       5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// ConnectionManager owns the persistent WebSocket to the playback source:
// dialing, the read pump, and the fixed-delay reconnect policy. Every
// received text frame is handed to onFrame in arrival order on a single
// goroutine.
//
// Transport failures are not errors here; they fold into
// StateDisconnected plus a scheduled reconnect. The only way the manager
// stays down is Close.
type ConnectionManager struct {
	config  ConnConfig
	clock   clockwork.Clock
	dialer  *websocket.Dialer
	onFrame func(raw []byte, receivedAt time.Time)

	mu          sync.Mutex
	state       ConnState
	ws          *websocket.Conn
	retryCancel chan struct{}
	closed      bool

	// pump counts in-flight dialAndRead goroutines so Close can wait for
	// the last frame delivery to finish. Add only happens under mu while
	// closed is false, so it never races a pending Wait.
	pump sync.WaitGroup
}

// NewConnectionManager creates a manager that delivers frames to onFrame.
// No connection is attempted until Connect.
func NewConnectionManager(config ConnConfig, clock clockwork.Clock, onFrame func(raw []byte, receivedAt time.Time)) *ConnectionManager {
	return &ConnectionManager{
		config: config,
		clock:  clock,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		onFrame: onFrame,
		state:   StateDisconnected,
	}
}

// Connect starts the first connection attempt. Reconnection after that is
// automatic; callers only ever call Connect once.
func (cm *ConnectionManager) Connect() {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return
	}
	cm.state = StateConnecting
	cm.pump.Add(1)
	cm.mu.Unlock()

	go func() {
		defer cm.pump.Done()
		cm.dialAndRead()
	}()
}

// State returns the current connection state.
func (cm *ConnectionManager) State() ConnState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// Close tears the connection down: the active socket is closed (idempotent
// if already closed), any pending reconnect is cancelled, and Close blocks
// until the read pump has exited. Once Close returns, no further frame is
// delivered to onFrame and no reconnection happens, ever.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return
	}
	cm.closed = true
	cm.state = StateDisconnected

	if cm.retryCancel != nil {
		close(cm.retryCancel)
		cm.retryCancel = nil
	}
	if cm.ws != nil {
		cm.ws.Close()
		cm.ws = nil
	}
	cm.mu.Unlock()

	cm.pump.Wait()
	log.Info().Msg("connection manager closed")
}

// dialAndRead performs one connection attempt and, on success, runs the
// read pump until the socket dies. Both failure paths end in
// scheduleReconnect.
func (cm *ConnectionManager) dialAndRead() {
	attemptID := uuid.New().String()[:8]

	log.Info().
		Str("attempt_id", attemptID).
		Str("url", cm.config.URL).
		Msg("connecting to playback source")

	ws, _, err := cm.dialer.Dial(cm.config.URL, nil)
	if err != nil {
		log.Warn().
			Err(err).
			Str("attempt_id", attemptID).
			Msg("dial failed")
		cm.scheduleReconnect()
		return
	}

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		ws.Close()
		return
	}
	cm.ws = ws
	cm.state = StateConnected
	cm.mu.Unlock()

	log.Info().
		Str("attempt_id", attemptID).
		Str("url", cm.config.URL).
		Msg("connected to playback source")

	ws.SetReadLimit(cm.config.MaxMessageSize)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("attempt_id", attemptID).
					Msg("unexpected close")
			}
			break
		}
		cm.onFrame(message, cm.clock.Now())
	}

	cm.mu.Lock()
	if cm.ws == ws {
		cm.ws = nil
	}
	cm.mu.Unlock()
	ws.Close()

	cm.scheduleReconnect()
}

// scheduleReconnect arms exactly one fixed-delay reconnect attempt. A
// disconnect that races with an already pending retry does not arm a
// second one, and nothing is armed after Close.
func (cm *ConnectionManager) scheduleReconnect() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return
	}
	cm.state = StateDisconnected
	if cm.retryCancel != nil {
		return
	}

	timer := cm.clock.NewTimer(cm.config.RetryDelay)
	cancel := make(chan struct{})
	cm.retryCancel = cancel

	log.Info().
		Dur("retry_delay", cm.config.RetryDelay).
		Msg("scheduling reconnect")

	go func() {
		select {
		case <-timer.Chan():
			cm.mu.Lock()
			if cm.retryCancel == cancel {
				cm.retryCancel = nil
			}
			if cm.closed {
				cm.mu.Unlock()
				return
			}
			cm.state = StateConnecting
			cm.pump.Add(1)
			cm.mu.Unlock()
			defer cm.pump.Done()
			cm.dialAndRead()
		case <-cancel:
			stopAndDrainTimer(timer)
		}
	}()
}
