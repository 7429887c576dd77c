package routing

import (
	"context"
	"sync"

	"controlroom/backend"
	"controlroom/logging"
)

// RoundRobin gives backends turns in cyclic order. The turn counter is
// per-strategy-instance state; sessions serialize their turns, and the mutex
// here additionally keeps the selection-and-increment atomic should two turns
// ever race on one instance.
type RoundRobin struct {
	mu     sync.Mutex
	turn   int
	logger logging.Logger
}

var _ Strategy = (*RoundRobin)(nil)

// Name implements Strategy.
func (r *RoundRobin) Name() string { return NameRoundRobin }

// Route implements Strategy issuing exactly one backend call per turn.
func (r *RoundRobin) Route(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply {
	if len(backends) == 0 {
		return nil
	}

	r.mu.Lock()
	current := backends[r.turn%len(backends)]
	r.turn++
	r.mu.Unlock()

	full := withUserMessage(history, message)

	reply, err := current.Send(ctx, full, params)
	if err != nil {
		r.logger.Warn("Backend call failed", "backend_id", current.Info().ID, "error", err.Error())
		return []backend.Reply{errorReply(current, err)}
	}
	return []backend.Reply{*reply}
}
