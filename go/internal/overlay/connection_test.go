package overlay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer accepts playback-source connections and hands them to the
// test for scripting.
type wsTestServer struct {
	server *httptest.Server
	conns  chan *websocket.Conn
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	s := &wsTestServer{
		conns: make(chan *websocket.Conn, 8),
	}
	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// waitConn blocks until the server has accepted a connection.
func (s *wsTestServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// assertNoConn asserts that no new connection arrives within the window.
func (s *wsTestServer) assertNoConn(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case <-s.conns:
		t.Fatal("unexpected connection attempt")
	case <-time.After(window):
	}
}

func newTestManager(t *testing.T, url string, clock clockwork.Clock, onFrame func([]byte, time.Time)) *ConnectionManager {
	t.Helper()
	if onFrame == nil {
		onFrame = func([]byte, time.Time) {}
	}
	cm := NewConnectionManager(DefaultConnConfig(url), clock, onFrame)
	t.Cleanup(cm.Close)
	return cm
}

func TestConnectionManager_ConnectTransitionsToConnected(t *testing.T) {
	server := newWSTestServer(t)
	clock := clockwork.NewFakeClock()
	cm := newTestManager(t, server.url(), clock, nil)

	cm.Connect()
	server.waitConn(t)

	assert.Eventually(t, func() bool {
		return cm.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionManager_FramesArriveInOrder(t *testing.T) {
	server := newWSTestServer(t)
	clock := clockwork.NewFakeClock()

	frames := make(chan string, 8)
	cm := newTestManager(t, server.url(), clock, func(raw []byte, _ time.Time) {
		frames <- string(raw)
	})

	cm.Connect()
	conn := server.waitConn(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","data":{}}`)))

	assert.Equal(t, `{"type":"welcome"}`, <-frames)
	assert.Equal(t, `{"type":"progress","data":{}}`, <-frames)
}

func TestConnectionManager_ReconnectsOnceAfterFixedDelay(t *testing.T) {
	server := newWSTestServer(t)
	clock := clockwork.NewFakeClock()
	cm := newTestManager(t, server.url(), clock, nil)

	cm.Connect()
	conn := server.waitConn(t)

	conn.Close()
	require.Eventually(t, func() bool {
		return cm.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	// Just short of the retry delay: nothing happens.
	clock.Advance(4900 * time.Millisecond)
	server.assertNoConn(t, 100*time.Millisecond)

	// Crossing the delay: exactly one new attempt.
	clock.Advance(100 * time.Millisecond)
	server.waitConn(t)
	assert.Eventually(t, func() bool {
		return cm.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	// No stray second attempt once reconnected.
	server.assertNoConn(t, 100*time.Millisecond)
}

func TestConnectionManager_CloseCancelsPendingReconnect(t *testing.T) {
	server := newWSTestServer(t)
	clock := clockwork.NewFakeClock()
	cm := newTestManager(t, server.url(), clock, nil)

	cm.Connect()
	conn := server.waitConn(t)

	conn.Close()
	require.Eventually(t, func() bool {
		return cm.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	cm.Close()
	clock.Advance(time.Minute)

	server.assertNoConn(t, 200*time.Millisecond)
	assert.Equal(t, StateDisconnected, cm.State())
}

func TestConnectionManager_CloseIsIdempotent(t *testing.T) {
	server := newWSTestServer(t)
	cm := newTestManager(t, server.url(), clockwork.NewFakeClock(), nil)

	cm.Connect()
	server.waitConn(t)

	assert.NotPanics(t, func() {
		cm.Close()
		cm.Close()
	})
	assert.Equal(t, StateDisconnected, cm.State())
}

func TestConnectionManager_CloseWaitsForReadPump(t *testing.T) {
	server := newWSTestServer(t)
	clock := clockwork.NewFakeClock()

	entered := make(chan struct{})
	release := make(chan struct{})
	cm := newTestManager(t, server.url(), clock, func([]byte, time.Time) {
		close(entered)
		<-release
	})

	cm.Connect()
	conn := server.waitConn(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","data":{}}`)))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame delivery")
	}

	closed := make(chan struct{})
	go func() {
		cm.Close()
		close(closed)
	}()

	// The frame handler is still running, so Close must not have returned.
	select {
	case <-closed:
		t.Fatal("Close returned while a frame was still being handled")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the read pump exited")
	}
}

func TestConnectionManager_CloseWithoutConnectIsSafe(t *testing.T) {
	cm := NewConnectionManager(DefaultConnConfig("ws://127.0.0.1:1"), clockwork.NewFakeClock(), func([]byte, time.Time) {})

	assert.NotPanics(t, cm.Close)

	// Connect after Close must stay down.
	cm.Connect()
	assert.Equal(t, StateDisconnected, cm.State())
}

func TestConnectionManager_DialFailureKeepsRetrying(t *testing.T) {
	// Nothing listens on port 1; every dial fails fast.
	clock := clockwork.NewFakeClock()
	cm := newTestManager(t, "ws://127.0.0.1:1", clock, nil)

	cm.Connect()
	require.Eventually(t, func() bool {
		return cm.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	// Constant-interval retry, no backoff and no give-up. BlockUntil makes
	// sure each retry timer is armed before the clock jumps past it.
	for i := 0; i < 3; i++ {
		clock.BlockUntil(1)
		clock.Advance(5 * time.Second)
		require.Eventually(t, func() bool {
			return cm.State() == StateDisconnected
		}, 2*time.Second, 10*time.Millisecond)
	}
}
