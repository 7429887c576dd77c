package session

import (
	"context"
	"fmt"
	"sync"

	"controlroom/backend"
	"controlroom/logging"
	"controlroom/routing"
)

// Registry is the process-wide mapping from session id to Session. It is
// constructed explicitly and injected into transport handlers; entries are
// removed only by Delete, with no implicit eviction or expiry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory       *backend.Factory
	historyWindow int
	logger        *logging.ControlRoomLogger
}

// RegistryOptions holds construction overrides for NewRegistry.
type RegistryOptions struct {
	// Logger receives registry and session logs; defaults to NoOp.
	Logger logging.Logger
	// HistoryWindow bounds how many messages sessions replay as model
	// context; zero means the full history.
	HistoryWindow int
}

// NewRegistry constructs an empty registry resolving backends via factory.
func NewRegistry(factory *backend.Factory, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		sessions:      make(map[string]*Session),
		factory:       factory,
		historyWindow: opts.HistoryWindow,
		logger:        logging.NewControlRoomLogger(opts.Logger).WithComponent("registry"),
	}
}

// Create resolves each backend config into a live handle and binds the named
// routing strategy. Individual backend failures are logged and skipped;
// creation fails only when zero backends resolve or the strategy name or
// parameters are invalid.
func (r *Registry) Create(strategyName string, configs []backend.Config, params routing.Params, costCeiling float64) (*Session, error) {
	var backends []backend.Backend
	for _, cfg := range configs {
		b, err := r.factory.Create(cfg)
		if err != nil {
			r.logger.Warn("Failed to initialize backend", "backend_id", cfg.ID, "error", err.Error())
			continue
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: all %d configs failed", backend.ErrNoBackends, len(configs))
	}

	strategy, err := routing.New(strategyName, params, routing.WithLogger(r.logger.WithComponent("routing")))
	if err != nil {
		return nil, err
	}

	sess := newSession(strategyName, params, configs, backends, strategy, costCeiling, r.historyWindow, r.logger)

	r.mu.Lock()
	r.sessions[sess.ID()] = sess
	r.mu.Unlock()

	r.logger.Info("Session created", "session_id", sess.ID(), "strategy", strategyName, "backend_count", len(backends))
	return sess, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// List returns snapshots of all sessions.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, len(sessions))
	for i, s := range sessions {
		out[i] = s.Snapshot()
	}
	return out
}

// SendMessage routes one turn on the identified session.
func (r *Registry) SendMessage(ctx context.Context, id, text string, params backend.SamplingParams) ([]backend.Reply, TurnTotals, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, TurnTotals{}, err
	}
	return sess.SendMessage(ctx, text, params)
}

// Pause pauses the identified session.
func (r *Registry) Pause(id string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	return sess.Pause()
}

// Resume resumes the identified session.
func (r *Registry) Resume(id string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	return sess.Resume()
}

// End marks the identified session completed.
func (r *Registry) End(id string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	sess.End()
	return nil
}

// Delete removes the session from the registry regardless of status.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// Export produces the identified session's projection in the given format.
func (r *Registry) Export(id, format string) ([]byte, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Export(format)
}

// Clear drops all session state. Used at teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}
