// Package controlroom provides a façade over the orchestration core: the
// session registry, the routing strategies and the tool server manager.
// Applications interact with this package by:
//  1. Creating a ControlRoom via New() (optionally overriding the backend
//     factory, logger or history window)
//  2. Creating sessions through Sessions() and registering tool servers
//     through Tools()
//  3. Calling Teardown() at shutdown to stop all tool servers and drop
//     session state
//
// The façade wires the pieces explicitly instead of exposing package-level
// singletons, so transport handlers receive exactly one injected instance
// whose lifecycle runs from process start to shutdown.
package controlroom

import (
	"context"

	"controlroom/backend"
	"controlroom/backend/anthropic"
	"controlroom/backend/openai"
	"controlroom/logging"
	"controlroom/mcp"
	"controlroom/session"
)

// Options configures the ControlRoom instance.
type Options struct {
	// Factory resolves backend configs; defaults to a factory with the
	// Anthropic, OpenAI, OpenAI-compatible and mock providers registered.
	Factory *backend.Factory

	// Logger receives structured logs from all components; defaults to NoOp.
	Logger logging.Logger

	// HistoryWindow bounds how many messages sessions replay as model
	// context; zero replays the full history.
	HistoryWindow int
}

// ControlRoom aggregates the session registry and the tool server manager.
type ControlRoom struct {
	sessions *session.Registry
	tools    *mcp.Manager
	factory  *backend.Factory
	logger   logging.Logger
}

// New creates a ControlRoom with optional overrides.
func New(optFns ...func(o *Options)) *ControlRoom {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Factory == nil {
		opts.Factory = DefaultFactory()
	}

	return &ControlRoom{
		sessions: session.NewRegistry(opts.Factory, func(o *session.RegistryOptions) {
			o.Logger = opts.Logger
			o.HistoryWindow = opts.HistoryWindow
		}),
		tools: mcp.NewManager(func(o *mcp.ManagerOptions) {
			o.Logger = opts.Logger
		}),
		factory: opts.Factory,
		logger:  opts.Logger,
	}
}

// WithLogger overrides the logger for all components.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithFactory overrides the backend factory.
func WithFactory(f *backend.Factory) func(o *Options) {
	return func(o *Options) { o.Factory = f }
}

// WithHistoryWindow bounds the model context window in messages.
func WithHistoryWindow(n int) func(o *Options) {
	return func(o *Options) { o.HistoryWindow = n }
}

// DefaultFactory returns a backend factory with all built-in providers registered.
func DefaultFactory() *backend.Factory {
	f := backend.NewFactory()
	f.Register(backend.KindAnthropic, anthropic.Build)
	f.Register(backend.KindOpenAI, openai.Build)
	f.Register(backend.KindOpenAICompatible, openai.Build)
	f.Register(backend.KindMock, backend.NewMockFromConfig)
	return f
}

// Sessions returns the session registry.
func (c *ControlRoom) Sessions() *session.Registry { return c.sessions }

// Tools returns the tool server manager.
func (c *ControlRoom) Tools() *mcp.Manager { return c.tools }

// Factory returns the backend factory.
func (c *ControlRoom) Factory() *backend.Factory { return c.factory }

// Teardown shuts down all tool servers and drops session state.
func (c *ControlRoom) Teardown(ctx context.Context) error {
	err := c.tools.ShutdownAll(ctx)
	c.sessions.Clear()
	return err
}
