package backend

import (
	"context"
	"time"
)

// ChatMessage is one wire-level conversation turn handed to a provider.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system", "tool"
	Content string `json:"content"`
}

// SamplingParams carries the per-call generation knobs. Zero values fall back
// to the backend's configured defaults.
type SamplingParams struct {
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Reply is one backend's answer to a turn.
type Reply struct {
	Content   string         `json:"content"`
	BackendID string         `json:"backend_id"`
	Tokens    int            `json:"tokens,omitempty"`
	Cost      float64        `json:"cost,omitempty"`
	LatencyMS float64        `json:"latency_ms"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsError reports whether this reply is a synthetic stand-in for a failed
// backend call rather than genuine model output.
func (r Reply) IsError() bool {
	v, ok := r.Metadata["error"]
	b, isBool := v.(bool)
	return ok && isBool && b
}

// Chunk is an incremental fragment of a streaming reply.
type Chunk struct {
	Content   string `json:"content"`
	Done      bool   `json:"done"`
	BackendID string `json:"backend_id"`
	Tokens    int    `json:"tokens,omitempty"`
}

// Info describes a bound backend to callers that only need identity.
type Info struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
	Role      string `json:"role,omitempty"`
}

// Backend is the uniform interface every model provider satisfies. Send blocks
// until the provider answers (or the context/deadline cancels the call);
// Stream returns incremental chunks followed by channel close. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Info returns identity metadata for this bound backend.
	Info() Info

	// Send submits the message list and returns the complete reply.
	Send(ctx context.Context, messages []ChatMessage, params SamplingParams) (*Reply, error)

	// Stream submits the message list and emits incremental chunks. The chunk
	// channel is closed when generation completes; at most one error is sent.
	Stream(ctx context.Context, messages []ChatMessage, params SamplingParams) (<-chan Chunk, <-chan error)

	// HealthCheck reports whether the provider currently answers requests.
	HealthCheck(ctx context.Context) bool

	// EstimateCost returns the dollar cost for the given token counts.
	EstimateCost(inputTokens, outputTokens int) float64
}
