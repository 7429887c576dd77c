package routing

import (
	"context"
	"sync"

	"controlroom/backend"
	"controlroom/logging"
)

// Broadcast sends the message to every bound backend concurrently and waits
// for all of them. A failed call becomes a synthetic error reply in that
// backend's slot, so the result always has exactly one reply per backend, in
// input order.
type Broadcast struct {
	logger logging.Logger
}

var _ Strategy = (*Broadcast)(nil)

// Name implements Strategy.
func (b *Broadcast) Name() string { return NameBroadcast }

// Route implements Strategy.
func (b *Broadcast) Route(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply {
	full := withUserMessage(history, message)

	replies := make([]backend.Reply, len(backends))
	var wg sync.WaitGroup
	for i, be := range backends {
		wg.Add(1)
		go func(i int, be backend.Backend) {
			defer wg.Done()
			reply, err := be.Send(ctx, full, params)
			if err != nil {
				b.logger.Warn("Backend call failed", "backend_id", be.Info().ID, "error", err.Error())
				replies[i] = errorReply(be, err)
				return
			}
			replies[i] = *reply
		}(i, be)
	}
	wg.Wait()

	return replies
}
