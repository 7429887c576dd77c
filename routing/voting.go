package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"controlroom/backend"
	"controlroom/logging"
)

// Voting runs two phases: every backend proposes an answer, then every
// backend votes on the numbered list of surviving proposals. The proposal
// with the most votes wins; on a tie the lowest-numbered proposal wins. The
// winning reply gains vote-count metadata. Failed proposals and malformed or
// out-of-range votes are dropped; if no valid votes are cast all surviving
// proposals are returned unranked.
type Voting struct {
	logger logging.Logger
}

var _ Strategy = (*Voting)(nil)

// Name implements Strategy.
func (v *Voting) Name() string { return NameVoting }

// Route implements Strategy.
func (v *Voting) Route(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply {
	if len(backends) < 2 {
		// Voting needs at least two participants.
		return (&Broadcast{logger: v.logger}).Route(ctx, message, backends, history, params)
	}

	proposals := v.propose(ctx, message, backends, history, params)
	if len(proposals) < 2 {
		return proposals
	}

	tally := v.vote(ctx, backends, proposals)
	if len(tally) == 0 {
		return proposals
	}

	// Lowest proposal number wins ties: scan in ascending order and only
	// replace the winner on a strictly greater count.
	winner, best := 0, 0
	for num := 1; num <= len(proposals); num++ {
		if tally[num] > best {
			winner, best = num, tally[num]
		}
	}

	win := proposals[winner-1]
	if win.Metadata == nil {
		win.Metadata = map[string]any{}
	}
	win.Metadata["voting"] = map[string]any{
		"votes":           best,
		"total_proposals": len(proposals),
	}
	return []backend.Reply{win}
}

// propose asks every backend concurrently; failed proposals are dropped while
// the survivors keep backend input order.
func (v *Voting) propose(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply {
	full := withUserMessage(history, message)

	results := make([]*backend.Reply, len(backends))
	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b backend.Backend) {
			defer wg.Done()
			reply, err := b.Send(ctx, full, params)
			if err != nil {
				v.logger.Warn("Proposal failed", "backend_id", b.Info().ID, "error", err.Error())
				return
			}
			results[i] = reply
		}(i, b)
	}
	wg.Wait()

	proposals := make([]backend.Reply, 0, len(results))
	for _, r := range results {
		if r != nil {
			proposals = append(proposals, *r)
		}
	}
	return proposals
}

// vote shows every backend the numbered proposals and tallies the returned
// numbers, discarding anything malformed or out of range.
func (v *Voting) vote(ctx context.Context, backends []backend.Backend, proposals []backend.Reply) map[int]int {
	var listing strings.Builder
	for i, p := range proposals {
		fmt.Fprintf(&listing, "Proposal %d (from %s):\n%s\n\n", i+1, p.BackendID, p.Content)
	}

	prompt := fmt.Sprintf(`Review these proposals and vote for the best one.

%s
Respond with only the number (1, 2, 3, etc.) of the best proposal.`, listing.String())

	ballot := []backend.ChatMessage{{Role: "user", Content: prompt}}

	votes := make([]int, len(backends))
	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b backend.Backend) {
			defer wg.Done()
			reply, err := b.Send(ctx, ballot, backend.SamplingParams{Temperature: 0.3, MaxTokens: 10})
			if err != nil {
				v.logger.Warn("Vote failed", "backend_id", b.Info().ID, "error", err.Error())
				return
			}
			num, err := strconv.Atoi(strings.TrimSpace(reply.Content))
			if err != nil || num < 1 || num > len(proposals) {
				return
			}
			votes[i] = num
		}(i, b)
	}
	wg.Wait()

	tally := make(map[int]int)
	for _, num := range votes {
		if num > 0 {
			tally[num]++
		}
	}
	return tally
}
