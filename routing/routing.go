// Package routing implements the strategies that decide which backends
// receive a user message and how their replies are combined. Backend call
// failures are contained here: a strategy converts them into synthetic error
// replies or drops them, but never lets them escape Route, so one bad backend
// cannot abort a whole turn.
package routing

import (
	"context"
	"fmt"
	"time"

	"controlroom/backend"
	"controlroom/logging"
)

// Strategy names accepted by New.
const (
	NameBroadcast   = "broadcast"
	NameRoundRobin  = "round_robin"
	NameCoordinator = "coordinator"
	NameVoting      = "voting"
)

var (
	// ErrUnknownStrategy is returned by New for an unrecognized strategy name.
	ErrUnknownStrategy = fmt.Errorf("unknown routing strategy")

	// ErrMissingParameter is returned by New when a strategy requires a
	// parameter that was not supplied.
	ErrMissingParameter = fmt.Errorf("missing strategy parameter")
)

// Params carries per-strategy construction parameters.
type Params struct {
	// CoordinatorID designates the coordinator backend; required by the
	// coordinator strategy, ignored by the others.
	CoordinatorID string `json:"coordinator_id,omitempty"`
}

// Strategy routes one user message to a set of backends and combines their
// replies. Reply ordering for fan-out strategies matches the input backend
// ordering regardless of completion order.
type Strategy interface {
	// Name returns the strategy's registered name.
	Name() string

	// Route sends message to the backends it selects, using history as prior
	// conversation context, and returns the combined replies. It never
	// returns early with partial results and never propagates backend call
	// failures as errors.
	Route(ctx context.Context, message string, backends []backend.Backend, history []backend.ChatMessage, params backend.SamplingParams) []backend.Reply
}

// New constructs the named strategy. The round-robin strategy carries mutable
// turn state, so each session gets its own instance.
func New(name string, params Params, optFns ...func(o *Options)) (Strategy, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	switch name {
	case NameBroadcast:
		return &Broadcast{logger: opts.Logger}, nil
	case NameRoundRobin:
		return &RoundRobin{logger: opts.Logger}, nil
	case NameCoordinator:
		if params.CoordinatorID == "" {
			return nil, fmt.Errorf("%w: coordinator strategy requires a coordinator id", ErrMissingParameter)
		}
		return &Coordinator{coordinatorID: params.CoordinatorID, logger: opts.Logger}, nil
	case NameVoting:
		return &Voting{logger: opts.Logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Options holds construction overrides shared by all strategies.
type Options struct {
	Logger logging.Logger
}

// WithLogger overrides the strategy logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Names returns the registered strategy names.
func Names() []string {
	return []string{NameBroadcast, NameRoundRobin, NameCoordinator, NameVoting}
}

// withUserMessage appends the user message to a copy of the prior context.
func withUserMessage(history []backend.ChatMessage, message string) []backend.ChatMessage {
	full := make([]backend.ChatMessage, 0, len(history)+1)
	full = append(full, history...)
	return append(full, backend.ChatMessage{Role: "user", Content: message})
}

// errorReply synthesizes a zero-cost reply carrying the failure, so a failed
// backend is visible in the turn's output instead of aborting it.
func errorReply(b backend.Backend, err error) backend.Reply {
	return backend.Reply{
		Content:   fmt.Sprintf("[Error: %v]", err),
		BackendID: b.Info().ID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"error": true},
	}
}
