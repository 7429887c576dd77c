package transport

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The control room fronts its own UI; cross-origin policy belongs to the
	// deployment, not here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsAction is one inbound client frame.
type wsAction struct {
	Action      string  `json:"action"`
	Content     string  `json:"content,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

// serveWS upgrades the connection and subscribes it to the session's event
// stream. For each accepted user message every subscriber sees the raw text,
// then one event per backend reply, then a summary with turn and running
// totals; failures surface as error events rather than silence.
func (a *API) serveWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := a.room.Sessions().Get(sessionID); err != nil {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("WebSocket upgrade failed", "error", err.Error())
		return
	}

	a.hub.add(sessionID, conn)
	defer func() {
		a.hub.remove(sessionID, conn)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var action wsAction
		if err := json.Unmarshal(raw, &action); err != nil {
			a.hub.send(conn, map[string]any{"type": "error", "message": "invalid JSON"})
			continue
		}

		switch action.Action {
		case "send_message":
			a.handleWSMessage(r, sessionID, conn, action)
		case "ping":
			a.hub.send(conn, map[string]any{"type": "pong"})
		default:
			a.hub.send(conn, map[string]any{"type": "error", "message": "unknown action: " + action.Action})
		}
	}
}

func (a *API) handleWSMessage(r *http.Request, sessionID string, conn *websocket.Conn, action wsAction) {
	if action.Content == "" {
		a.hub.send(conn, map[string]any{"type": "error", "message": "message content required"})
		return
	}

	a.hub.Broadcast(sessionID, map[string]any{
		"type":    "user_message",
		"content": action.Content,
	})

	replies, totals, err := a.room.Sessions().SendMessage(r.Context(), sessionID, action.Content, a.samplingFrom(action.Temperature, action.MaxTokens))
	if err != nil {
		a.hub.Broadcast(sessionID, map[string]any{"type": "error", "message": err.Error()})
		return
	}

	for _, reply := range replies {
		a.hub.Broadcast(sessionID, map[string]any{
			"type":       "model_response",
			"backend_id": reply.BackendID,
			"content":    reply.Content,
			"tokens":     reply.Tokens,
			"cost":       reply.Cost,
			"latency_ms": reply.LatencyMS,
			"timestamp":  reply.Timestamp,
			"metadata":   reply.Metadata,
		})
	}

	a.hub.Broadcast(sessionID, map[string]any{
		"type":                 "response_complete",
		"turn_tokens":          totals.TurnTokens,
		"turn_cost":            totals.TurnCost,
		"session_total_tokens": totals.SessionTotalTokens,
		"session_total_cost":   totals.SessionTotalCost,
	})
}
