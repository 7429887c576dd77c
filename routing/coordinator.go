package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"controlroom/backend"
	"controlroom/logging"
)

// Coordinator designates one backend as the coordinator: it is asked which of
// the remaining specialist backends should answer, then the selected
// specialists are called concurrently on the original message. An empty
// selection means the coordinator answers alone. If the coordinator is not
// among the bound backends, or its decision call fails, the strategy falls
// back to broadcasting over all backends.
//
// Unlike Broadcast, failed specialist calls are dropped rather than turned
// into error replies.
type Coordinator struct {
	coordinatorID string
	logger        logging.Logger
}

var _ Strategy = (*Coordinator)(nil)

// Name implements Strategy.
func (c *Coordinator) Name() string { return NameCoordinator }

// Route implements Strategy.
func (c *Coordinator) Route(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply {
	var coordinator backend.Backend
	var specialists []backend.Backend
	for _, b := range backends {
		if b.Info().ID == c.coordinatorID {
			coordinator = b
		} else {
			specialists = append(specialists, b)
		}
	}

	broadcast := &Broadcast{logger: c.logger}
	if coordinator == nil {
		c.logger.Warn("Coordinator backend not bound, falling back to broadcast", "coordinator_id", c.coordinatorID)
		return broadcast.Route(ctx, message, backends, history, params)
	}

	selected, err := c.decide(ctx, coordinator, specialists, message, history)
	if err != nil {
		c.logger.Warn("Coordinator decision failed, falling back to broadcast", "error", err.Error())
		return broadcast.Route(ctx, message, backends, history, params)
	}

	full := withUserMessage(history, message)

	if len(selected) == 0 {
		// Coordinator handles the turn alone.
		reply, err := coordinator.Send(ctx, full, params)
		if err != nil {
			c.logger.Warn("Coordinator answer failed, falling back to broadcast", "error", err.Error())
			return broadcast.Route(ctx, message, backends, history, params)
		}
		return []backend.Reply{*reply}
	}

	// Broadcast semantics over the selected specialists, but failures are
	// dropped instead of surfaced as error replies.
	results := make([]*backend.Reply, len(selected))
	var wg sync.WaitGroup
	for i, b := range selected {
		wg.Add(1)
		go func(i int, b backend.Backend) {
			defer wg.Done()
			reply, err := b.Send(ctx, full, params)
			if err != nil {
				c.logger.Warn("Specialist call failed", "backend_id", b.Info().ID, "error", err.Error())
				return
			}
			results[i] = reply
		}(i, b)
	}
	wg.Wait()

	replies := make([]backend.Reply, 0, len(results))
	for _, r := range results {
		if r != nil {
			replies = append(replies, *r)
		}
	}
	return replies
}

// decide asks the coordinator which specialists should answer. The response
// contract is a JSON array of backend ids; anything unparseable is treated as
// an empty selection.
func (c *Coordinator) decide(ctx context.Context, coordinator backend.Backend, specialists []backend.Backend, message string, history []backend.ChatMessage) ([]backend.Backend, error) {
	var info strings.Builder
	for _, s := range specialists {
		role := s.Info().Role
		if role == "" {
			role = "general"
		}
		fmt.Fprintf(&info, "- %s: %s\n", s.Info().ID, role)
	}

	prompt := fmt.Sprintf(`You are coordinating a team of AI specialists.

User message: %s

Available specialists:
%s
Decide which specialists should handle this request. You can select multiple or none.
Respond with a JSON array of backend IDs, e.g.: ["model_1", "model_2"] or [] if you'll handle it yourself.
Only respond with the JSON array, nothing else.`, message, info.String())

	decision, err := coordinator.Send(ctx, withUserMessage(history, prompt), backend.SamplingParams{
		Temperature: 0.3,
		MaxTokens:   100,
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(decision.Content)), &ids); err != nil {
		ids = nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var selected []backend.Backend
	for _, s := range specialists {
		if wanted[s.Info().ID] {
			selected = append(selected, s)
		}
	}
	return selected, nil
}
