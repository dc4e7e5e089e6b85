package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deepfakedetector/internal/logger"
	"deepfakedetector/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *HubService) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_FansOutEvents(t *testing.T) {
	hub := NewHubService(logger.Discard())
	go hub.Run()
	t.Cleanup(hub.Close)

	srv := newTestServer(t, hub)
	a := dial(t, srv)
	b := dial(t, srv)

	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	pct := 42
	hub.Publish(model.Event{Type: model.EventProgress, JobID: "job-1", Percent: &pct})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "progress", got["type"])
		assert.Equal(t, "job-1", got["job_id"])
		assert.Equal(t, float64(42), got["percent"])
	}
}

func TestHub_UnregistersClosedClients(t *testing.T) {
	hub := NewHubService(logger.Discard())
	go hub.Run()
	t.Cleanup(hub.Close)

	srv := newTestServer(t, hub)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < BroadcastQueueSize+10; i++ {
			hub.Publish(model.Event{Type: model.EventNotice, Message: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no reader")
	}
	assert.Len(t, hub.broadcast, BroadcastQueueSize)
}

func TestHub_RegisterAfterClose(t *testing.T) {
	hub := NewHubService(logger.Discard())
	go hub.Run()
	hub.Close()

	srv := newTestServer(t, hub)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.GetClientCount())
}

func TestHub_SlowViewerDoesNotStallOthers(t *testing.T) {
	hub := NewHubService(logger.Discard())
	go hub.Run()
	t.Cleanup(hub.Close)

	srv := newTestServer(t, hub)
	dial(t, srv) // stalled viewer, never reads
	fast := dial(t, srv)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	// Larger than the socket buffers, so the write to the stalled viewer blocks.
	big := make([]byte, 32<<20)
	for i := range big {
		big[i] = 'x'
	}
	hub.Broadcast(big)
	hub.Publish(model.Event{Type: model.EventNotice, Message: "after"})

	fast.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := fast.ReadMessage()
	require.NoError(t, err)
	assert.Len(t, data, len(big))

	_, data, err = fast.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"after"`)

	// The stalled viewer's queue overflows and it is dropped.
	for i := 0; i < clientQueueSize+1; i++ {
		hub.Publish(model.Event{Type: model.EventNotice, Message: "tick"})
	}
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}
