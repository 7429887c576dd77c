package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"controlroom/backend"
	"controlroom/logging"
	"controlroom/routing"
)

// Status is a session's lifecycle state.
type Status string

const (
	// StatusActive accepts new turns.
	StatusActive Status = "active"
	// StatusPaused rejects new turns until resumed.
	StatusPaused Status = "paused"
	// StatusCompleted is terminal for new turns; history stays readable.
	StatusCompleted Status = "completed"
)

// Session is a stateful binding of a routing strategy to a fixed set of
// backends plus the accumulated conversation and usage. All mutable state is
// guarded by a single mutex held for the whole turn, so concurrent
// SendMessage calls on one session serialize while separate sessions proceed
// independently.
type Session struct {
	mu sync.Mutex

	id             string
	conversationID string
	strategyName   string
	params         routing.Params
	configs        []backend.Config
	createdAt      time.Time

	backends    []backend.Backend
	strategy    routing.Strategy
	history     *History
	status      Status
	costCeiling float64
	totalTokens int
	totalCost   float64

	// historyWindow bounds how many messages are replayed as model context;
	// zero means the full history.
	historyWindow int

	logger *logging.ControlRoomLogger
}

// Snapshot is a read-only projection of session metadata for transport callers.
type Snapshot struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Strategy       string         `json:"strategy"`
	Params         routing.Params `json:"params"`
	Backends       []backend.Info `json:"backends"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         Status         `json:"status"`
	CostCeiling    float64        `json:"cost_ceiling,omitempty"`
	TotalTokens    int            `json:"total_tokens"`
	TotalCost      float64        `json:"total_cost"`
	MessageCount   int            `json:"message_count"`
}

// TurnTotals summarizes one turn's usage next to the session's running totals.
type TurnTotals struct {
	TurnTokens         int     `json:"turn_tokens"`
	TurnCost           float64 `json:"turn_cost"`
	SessionTotalTokens int     `json:"session_total_tokens"`
	SessionTotalCost   float64 `json:"session_total_cost"`
}

// SendMessage runs one turn: it rejects inactive sessions and exhausted cost
// ceilings before any backend call, appends the user message, routes it with
// the prior history as context, appends one assistant message per reply and
// accumulates totals. The returned replies exactly mirror what was appended,
// so callers can relay them directly.
func (s *Session) SendMessage(ctx context.Context, text string, params backend.SamplingParams) ([]backend.Reply, TurnTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, TurnTotals{}, fmt.Errorf("%w: status is %q", ErrNotActive, s.status)
	}
	if s.costCeiling > 0 && s.totalCost >= s.costCeiling {
		return nil, TurnTotals{}, fmt.Errorf("%w: $%.4f of $%.4f", ErrCostCeilingExceeded, s.totalCost, s.costCeiling)
	}

	// Context covers everything before this turn; the strategy appends the
	// user message itself.
	history := s.history.Context(s.historyWindow)
	s.history.AddUser(text)

	start := time.Now()
	replies := s.strategy.Route(ctx, text, s.backends, history, params)
	s.logger.LogRoute(s.strategyName, len(s.backends), len(replies), time.Since(start))

	totals := TurnTotals{}
	for _, reply := range replies {
		s.history.AddReply(reply)
		totals.TurnTokens += reply.Tokens
		totals.TurnCost += reply.Cost
	}
	s.totalTokens += totals.TurnTokens
	s.totalCost += totals.TurnCost
	totals.SessionTotalTokens = s.totalTokens
	totals.SessionTotalCost = s.totalCost

	return replies, totals, nil
}

// Pause transitions active → paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive {
		return fmt.Errorf("%w: cannot pause session in status %q", ErrNotActive, s.status)
	}
	s.status = StatusPaused
	return nil
}

// Resume transitions paused → active.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPaused {
		return fmt.Errorf("%w: cannot resume session in status %q", ErrNotActive, s.status)
	}
	s.status = StatusActive
	return nil
}

// End transitions any status to completed. The history remains readable.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Messages returns a defensive copy of the conversation history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Messages()
}

// Backends returns the bound backend handles in binding order.
func (s *Session) Backends() []backend.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

// Snapshot returns a read-only projection of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	infos := make([]backend.Info, len(s.backends))
	for i, b := range s.backends {
		infos[i] = b.Info()
	}
	return Snapshot{
		ID:             s.id,
		ConversationID: s.conversationID,
		Strategy:       s.strategyName,
		Params:         s.params,
		Backends:       infos,
		CreatedAt:      s.createdAt,
		Status:         s.status,
		CostCeiling:    s.costCeiling,
		TotalTokens:    s.totalTokens,
		TotalCost:      s.totalCost,
		MessageCount:   s.history.Len(),
	}
}

func newSession(strategyName string, params routing.Params, configs []backend.Config, backends []backend.Backend, strategy routing.Strategy, costCeiling float64, historyWindow int, logger *logging.ControlRoomLogger) *Session {
	id := uuid.NewString()
	return &Session{
		id:             id,
		conversationID: uuid.NewString(),
		strategyName:   strategyName,
		params:         params,
		configs:        configs,
		createdAt:      time.Now().UTC(),
		backends:       backends,
		strategy:       strategy,
		history:        NewHistory(),
		status:         StatusActive,
		costCeiling:    costCeiling,
		historyWindow:  historyWindow,
		logger:         logger.WithSession(id),
	}
}
