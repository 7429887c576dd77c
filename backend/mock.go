package backend

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockBackend is a lightweight in-memory Backend useful for tests & demos.
// Replies are deterministic: canned completions can be registered per prompt,
// otherwise the last user message is echoed back. Failures can be injected to
// exercise the routing strategies' error containment.
type MockBackend struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	tokens    int
	cost      float64
	failErr   error
	calls     int
}

// NewMockBackend constructs a MockBackend with the given identity.
func NewMockBackend(id string) *MockBackend {
	return &MockBackend{
		info:      Info{ID: id, Provider: "mock", ModelName: "mock-model"},
		responses: make(map[string]string),
		tokens:    10,
	}
}

// NewMockFromConfig builds a MockBackend from a Config; it is the Builder
// registered for KindMock.
func NewMockFromConfig(cfg Config) (Backend, error) {
	m := NewMockBackend(cfg.ID)
	m.info.ModelName = cfg.ModelName
	m.info.Role = cfg.Role
	return m, nil
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockBackend) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetUsage sets the token count and cost attached to every reply.
func (m *MockBackend) SetUsage(tokens int, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	m.cost = cost
}

// FailWith makes every subsequent Send/Stream call return err. Pass nil to heal.
func (m *MockBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Calls returns how many Send/Stream invocations this backend has received.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }

// Send implements Backend; returns the canned completion for the last user
// message, an echo if none is registered, or the injected failure.
func (m *MockBackend) Send(ctx context.Context, messages []ChatMessage, _ SamplingParams) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	err := m.failErr
	tokens, cost := m.tokens, m.cost
	full := m.responses[lastUserMessage(messages)]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", lastUserMessage(messages))
	}
	return &Reply{
		Content:   full,
		BackendID: m.info.ID,
		Tokens:    tokens,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{"provider": "mock"},
	}, nil
}

// Stream implements Backend; emits the full reply as rune chunks then a done marker.
func (m *MockBackend) Stream(ctx context.Context, messages []ChatMessage, params SamplingParams) (<-chan Chunk, <-chan error) {
	chunkCh := make(chan Chunk, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunkCh)
		defer close(errCh)
		reply, err := m.Send(ctx, messages, params)
		if err != nil {
			errCh <- err
			return
		}
		for _, r := range reply.Content {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case chunkCh <- Chunk{Content: string(r), BackendID: m.info.ID}:
			}
		}
		chunkCh <- Chunk{Done: true, BackendID: m.info.ID, Tokens: reply.Tokens}
	}()
	return chunkCh, errCh
}

// HealthCheck implements Backend; healthy unless a failure is injected.
func (m *MockBackend) HealthCheck(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failErr == nil
}

// EstimateCost implements Backend with a flat per-token rate.
func (m *MockBackend) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens+outputTokens) / 1_000_000
}

func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
