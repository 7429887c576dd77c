// Package transport exposes the orchestration core over HTTP and WebSocket.
// It is a thin shim: handlers decode requests, call into the injected
// ControlRoom and encode results; the live-connection surface relays every
// accepted user message, every backend reply and a per-turn summary to all
// subscribers of a session.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"controlroom"
	"controlroom/backend"
	"controlroom/logging"
	"controlroom/mcp"
	"controlroom/routing"
	"controlroom/session"
)

// API bundles the handlers around one ControlRoom instance.
type API struct {
	room     *controlroom.ControlRoom
	hub      *Hub
	sampling backend.SamplingParams
	logger   *logging.ControlRoomLogger
}

// Options holds construction overrides for NewAPI.
type Options struct {
	// Logger receives transport logs; defaults to NoOp.
	Logger logging.Logger
	// DefaultSampling is applied when a request carries no sampling parameters.
	DefaultSampling backend.SamplingParams
}

// NewAPI constructs the transport surface around room.
func NewAPI(room *controlroom.ControlRoom, optFns ...func(o *Options)) *API {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &API{
		room:     room,
		hub:      NewHub(),
		sampling: opts.DefaultSampling,
		logger:   logging.NewControlRoomLogger(opts.Logger).WithComponent("transport"),
	}
}

// Hub returns the live relay hub.
func (a *API) Hub() *Hub { return a.hub }

// Handler returns the HTTP routing table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", a.createSession)
	mux.HandleFunc("GET /api/sessions", a.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", a.getSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", a.deleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", a.sendMessage)
	mux.HandleFunc("POST /api/sessions/{id}/pause", a.lifecycle((*session.Registry).Pause))
	mux.HandleFunc("POST /api/sessions/{id}/resume", a.lifecycle((*session.Registry).Resume))
	mux.HandleFunc("POST /api/sessions/{id}/end", a.lifecycle((*session.Registry).End))
	mux.HandleFunc("GET /api/sessions/{id}/export", a.exportSession)
	mux.HandleFunc("GET /api/strategies", a.listStrategies)
	mux.HandleFunc("GET /api/providers", a.listProviders)

	mux.HandleFunc("POST /api/tools/servers", a.registerToolServer)
	mux.HandleFunc("GET /api/tools/servers", a.listToolServers)
	mux.HandleFunc("DELETE /api/tools/servers/{name}", a.shutdownToolServer)
	mux.HandleFunc("POST /api/tools/servers/{name}/call", a.callTool)
	mux.HandleFunc("GET /api/tools/schemas", a.toolSchemas)

	mux.HandleFunc("GET /ws/{id}", a.serveWS)

	return mux
}

type createSessionRequest struct {
	Strategy    string           `json:"strategy"`
	Backends    []backend.Config `json:"backends"`
	Params      routing.Params   `json:"params"`
	CostCeiling float64          `json:"cost_ceiling,omitempty"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := a.room.Sessions().Create(req.Strategy, req.Backends, req.Params, req.CostCeiling)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (a *API) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.room.Sessions().List())
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.room.Sessions().Get(r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.room.Sessions().Delete(r.PathValue("id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content     string  `json:"content"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

type sendMessageResponse struct {
	SessionID string             `json:"session_id"`
	Replies   []backend.Reply    `json:"replies"`
	Totals    session.TurnTotals `json:"totals"`
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		httpError(w, http.StatusBadRequest, "message content required")
		return
	}

	id := r.PathValue("id")
	replies, totals, err := a.room.Sessions().SendMessage(r.Context(), id, req.Content, a.samplingFrom(req.Temperature, req.MaxTokens))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{SessionID: id, Replies: replies, Totals: totals})
}

func (a *API) lifecycle(op func(*session.Registry, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(a.room.Sessions(), r.PathValue("id")); err != nil {
			a.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) exportSession(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = session.FormatJSON
	}
	out, err := a.room.Sessions().Export(r.PathValue("id"), format)
	if err != nil {
		a.fail(w, err)
		return
	}
	if format == session.FormatMarkdown {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(out)
}

func (a *API) listStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, routing.Names())
}

func (a *API) listProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.room.Factory().Kinds())
}

type registerToolServerRequest struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
}

func (a *API) registerToolServer(w http.ResponseWriter, r *http.Request) {
	var req registerToolServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Command) == 0 {
		httpError(w, http.StatusBadRequest, "name and command required")
		return
	}
	if err := a.room.Tools().RegisterServer(r.Context(), req.Name, req.Command); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) listToolServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.room.Tools().ListServers())
}

func (a *API) shutdownToolServer(w http.ResponseWriter, r *http.Request) {
	if err := a.room.Tools().ShutdownServer(r.PathValue("name")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type callToolRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

func (a *API) callTool(w http.ResponseWriter, r *http.Request) {
	var req callToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := a.room.Tools().CallTool(r.Context(), r.PathValue("name"), req.Tool, req.Arguments)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": json.RawMessage(result)})
}

func (a *API) toolSchemas(w http.ResponseWriter, r *http.Request) {
	var names []string
	if raw := r.URL.Query().Get("servers"); raw != "" {
		names = strings.Split(raw, ",")
	}
	writeJSON(w, http.StatusOK, a.room.Tools().ToolSchemas(names))
}

func (a *API) samplingFrom(temperature float64, maxTokens int64) backend.SamplingParams {
	params := a.sampling
	if temperature > 0 {
		params.Temperature = temperature
	}
	if maxTokens > 0 {
		params.MaxTokens = maxTokens
	}
	return params
}

// fail maps core errors onto HTTP statuses.
func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrCostCeilingExceeded):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, routing.ErrUnknownStrategy),
		errors.Is(err, routing.ErrMissingParameter),
		errors.Is(err, backend.ErrNoBackends),
		errors.Is(err, backend.ErrInvalidConfig),
		errors.Is(err, backend.ErrUnknownKind),
		errors.Is(err, session.ErrUnknownExportFormat):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mcp.ErrServerUnavailable):
		httpError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error("Request failed", "error", err.Error())
		httpError(w, http.StatusInternalServerError, err.Error())
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
