package transport

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type               string  `json:"type"`
	Content            string  `json:"content"`
	Message            string  `json:"message"`
	BackendID          string  `json:"backend_id"`
	Tokens             int     `json:"tokens"`
	TurnTokens         int     `json:"turn_tokens"`
	SessionTotalTokens int     `json:"session_total_tokens"`
	SessionTotalCost   float64 `json:"session_total_cost"`
}

func dialWS(t *testing.T, httpURL, sessionID string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(httpURL, "http", "ws", 1) + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWS_UnknownSessionRejectsHandshake(t *testing.T) {
	_, srv := newTestServer(t)

	url := strings.Replace(srv.URL, "http", "ws", 1) + "/ws/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWS_PingPong(t *testing.T) {
	_, srv := newTestServer(t)
	snap := createMockSession(t, srv, "broadcast")
	conn := dialWS(t, srv.URL, snap.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	assert.Equal(t, "pong", readEvent(t, conn).Type)
}

func TestWS_SendMessageEventSequence(t *testing.T) {
	_, srv := newTestServer(t)
	snap := createMockSession(t, srv, "broadcast")
	conn := dialWS(t, srv.URL, snap.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "send_message", "content": "hello"}))

	ev := readEvent(t, conn)
	assert.Equal(t, "user_message", ev.Type)
	assert.Equal(t, "hello", ev.Content)

	// One event per backend, order matching the binding order.
	first := readEvent(t, conn)
	assert.Equal(t, "model_response", first.Type)
	assert.Equal(t, "a", first.BackendID)
	assert.Equal(t, 10, first.Tokens)

	second := readEvent(t, conn)
	assert.Equal(t, "model_response", second.Type)
	assert.Equal(t, "b", second.BackendID)

	summary := readEvent(t, conn)
	assert.Equal(t, "response_complete", summary.Type)
	assert.Equal(t, 20, summary.TurnTokens)
	assert.Equal(t, 20, summary.SessionTotalTokens)
}

func TestWS_FanOutToAllSubscribers(t *testing.T) {
	_, srv := newTestServer(t)
	snap := createMockSession(t, srv, "broadcast")

	sender := dialWS(t, srv.URL, snap.ID)
	watcher := dialWS(t, srv.URL, snap.ID)

	require.NoError(t, sender.WriteJSON(map[string]any{"action": "send_message", "content": "hello"}))

	// The passive subscriber sees the same stream.
	ev := readEvent(t, watcher)
	assert.Equal(t, "user_message", ev.Type)
	assert.Equal(t, "hello", ev.Content)
}

func TestWS_ErrorsAsEvents(t *testing.T) {
	_, srv := newTestServer(t)
	snap := createMockSession(t, srv, "broadcast")
	conn := dialWS(t, srv.URL, snap.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "send_message"}))
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, ev.Message, "content required")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, ev.Message, "unknown action")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "invalid JSON", ev.Message)
}

func TestHub_Subscribers(t *testing.T) {
	h := NewHub()
	a, b := &websocket.Conn{}, &websocket.Conn{}

	h.add("s", a)
	h.add("s", b)
	assert.Equal(t, 2, h.Subscribers("s"))
	assert.Zero(t, h.Subscribers("other"))

	h.remove("s", a)
	assert.Equal(t, 1, h.Subscribers("s"))
	h.remove("s", b)
	assert.Zero(t, h.Subscribers("s"))
}
