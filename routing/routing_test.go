package routing

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlroom/backend"
)

// fakeBackend is a scripted backend for strategy tests. onSend, when set,
// fully controls the response; otherwise every call answers with content.
type fakeBackend struct {
	mu      sync.Mutex
	id      string
	role    string
	content string
	err     error
	onSend  func(messages []backend.ChatMessage, params backend.SamplingParams) (*backend.Reply, error)
	calls   [][]backend.ChatMessage
}

var _ backend.Backend = (*fakeBackend)(nil)

func newFakeBackend(id, content string) *fakeBackend {
	return &fakeBackend{id: id, content: content}
}

func (f *fakeBackend) Info() backend.Info {
	return backend.Info{ID: f.id, Provider: "fake", ModelName: "fake-model", Role: f.role}
}

func (f *fakeBackend) Send(_ context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (*backend.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()
	if f.onSend != nil {
		return f.onSend(messages, params)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &backend.Reply{
		Content:   f.content,
		BackendID: f.id,
		Tokens:    5,
		Cost:      0.01,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (f *fakeBackend) Stream(ctx context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (<-chan backend.Chunk, <-chan error) {
	chunkCh := make(chan backend.Chunk)
	errCh := make(chan error, 1)
	close(chunkCh)
	close(errCh)
	return chunkCh, errCh
}

func (f *fakeBackend) HealthCheck(context.Context) bool { return f.err == nil }

func (f *fakeBackend) EstimateCost(int, int) float64 { return 0 }

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// lastUser returns the last user message of the most recent call.
func (f *fakeBackend) lastUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	msgs := f.calls[len(f.calls)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func isBallot(messages []backend.ChatMessage) bool {
	return len(messages) == 1 && strings.HasPrefix(messages[0].Content, "Review these proposals")
}

func TestNew(t *testing.T) {
	t.Run("known strategies", func(t *testing.T) {
		for _, name := range Names() {
			params := Params{}
			if name == NameCoordinator {
				params.CoordinatorID = "c"
			}
			s, err := New(name, params)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())
		}
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := New("consensus", Params{})
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("coordinator requires id", func(t *testing.T) {
		_, err := New(NameCoordinator, Params{})
		assert.ErrorIs(t, err, ErrMissingParameter)
	})
}

func TestWithUserMessage(t *testing.T) {
	history := []backend.ChatMessage{{Role: "user", Content: "earlier"}}
	full := withUserMessage(history, "now")

	require.Len(t, full, 2)
	assert.Equal(t, "now", full[1].Content)
	// The caller's slice is untouched.
	assert.Len(t, history, 1)
}
