package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"controlroom/logging"
)

// State is a tool server's lifecycle state.
type State string

const (
	// StateInitializing covers the spawn-and-handshake window.
	StateInitializing State = "initializing"
	// StateReady accepts tool calls.
	StateReady State = "ready"
	// StateTerminated means the subprocess has been shut down.
	StateTerminated State = "terminated"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultCallTimeout      = 30 * time.Second
)

// ToolDescriptor describes one tool a server exposes.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// FunctionSchema is a backend-agnostic callable-function schema suitable for
// a model's function-calling interface. Tool names are qualified as
// "server:tool".
type FunctionSchema struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the function half of a FunctionSchema.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ServerInfo is the listing projection of a registered server.
type ServerInfo struct {
	Name      string   `json:"name"`
	State     State    `json:"state"`
	Available bool     `json:"available"`
	ToolNames []string `json:"tool_names"`
}

// server owns one subprocess and its wire channel. State transitions are
// guarded by the manager's lock.
type server struct {
	name      string
	command   []string
	tools     []ToolDescriptor
	state     State
	wire      *wire
	terminate func() error
}

// starter launches a tool server command and returns its stdio plus a
// terminate function. Factored out so tests can substitute in-memory pipes.
type starter func(command []string) (stdin io.WriteCloser, stdout io.Reader, terminate func() error, err error)

func startSubprocess(command []string) (io.WriteCloser, io.Reader, func() error, error) {
	if len(command) == 0 {
		return nil, nil, nil, fmt.Errorf("empty launch command")
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("start %q: %w", command[0], err)
	}

	terminate := func() error {
		_ = stdin.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
		return nil
	}
	return stdin, stdout, terminate, nil
}

// Manager owns all registered tool servers. Construct one per process and
// inject it; there is no package-level instance.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*server

	start            starter
	handshakeTimeout time.Duration
	callTimeout      time.Duration
	logger           *logging.ControlRoomLogger
}

// ManagerOptions holds construction overrides for NewManager.
type ManagerOptions struct {
	Logger           logging.Logger
	HandshakeTimeout time.Duration
	CallTimeout      time.Duration
}

// NewManager constructs an empty tool server manager.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Logger:           logging.NoOpLogger{},
		HandshakeTimeout: defaultHandshakeTimeout,
		CallTimeout:      defaultCallTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		servers:          make(map[string]*server),
		start:            startSubprocess,
		handshakeTimeout: opts.HandshakeTimeout,
		callTimeout:      opts.CallTimeout,
		logger:           logging.NewControlRoomLogger(opts.Logger).WithComponent("mcp"),
	}
}

// RegisterServer spawns the command and performs the three-step handshake:
// initialize, tools/list, then the server is stored as ready. Any failure
// terminates the spawned process and leaves the server unregistered.
func (m *Manager) RegisterServer(ctx context.Context, name string, command []string) error {
	if old := m.remove(name); old != nil {
		m.logger.Warn("Replacing registered tool server", "server", name)
		_ = old.terminate()
	}

	stdin, stdout, terminate, err := m.start(command)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	srv := &server{
		name:      name,
		command:   command,
		state:     StateInitializing,
		wire:      newWire(stdout, stdin),
		terminate: terminate,
	}

	tools, err := m.handshake(ctx, srv)
	if err != nil {
		_ = terminate()
		m.logger.Error("Tool server registration failed", "server", name, "error", err.Error())
		return fmt.Errorf("register %q: %w", name, err)
	}

	srv.tools = tools
	srv.state = StateReady

	m.mu.Lock()
	m.servers[name] = srv
	m.mu.Unlock()

	m.logger.Info("Tool server registered", "server", name, "tool_count", len(tools))
	return nil
}

func (m *Manager) handshake(ctx context.Context, srv *server) ([]ToolDescriptor, error) {
	_, err := srv.wire.call(ctx, "initialize", map[string]any{
		"protocolVersion": "0.1.0",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "controlroom",
			"version": "0.1.0",
		},
	}, m.handshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	result, err := srv.wire.call(ctx, "tools/list", map[string]any{}, m.handshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var listed struct {
		Tools []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		return nil, fmt.Errorf("tools/list: malformed result: %w", err)
	}

	tools := make([]ToolDescriptor, len(listed.Tools))
	for i, t := range listed.Tools {
		tools[i] = ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return tools, nil
}

// CallTool executes a tool on a ready server and returns the RPC result
// payload. Tool execution may be slow, so the read bound is longer than the
// handshake's.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (json.RawMessage, error) {
	m.mu.RLock()
	srv, ok := m.servers[serverName]
	available := ok && srv.state == StateReady
	m.mu.RUnlock()
	if !available {
		return nil, fmt.Errorf("%w: %q", ErrServerUnavailable, serverName)
	}

	start := time.Now()
	result, err := srv.wire.call(ctx, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": arguments,
	}, m.callTimeout)
	m.logger.LogToolCall(serverName, toolName, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("call %s:%s: %w", serverName, toolName, err)
	}
	return result, nil
}

// ToolSchemas flattens the tools of the named ready servers into callable
// function schemas. Unknown or non-ready servers are silently skipped.
func (m *Manager) ToolSchemas(serverNames []string) []FunctionSchema {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var schemas []FunctionSchema
	for _, name := range serverNames {
		srv, ok := m.servers[name]
		if !ok || srv.state != StateReady {
			continue
		}
		for _, tool := range srv.tools {
			schemas = append(schemas, FunctionSchema{
				Type: "function",
				Function: FunctionDefinition{
					Name:        fmt.Sprintf("%s:%s", name, tool.Name),
					Description: tool.Description,
					Parameters:  tool.InputSchema,
				},
			})
		}
	}
	return schemas
}

// ListServers returns the listing projection of every registered server.
func (m *Manager) ListServers() []ServerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ServerInfo, 0, len(m.servers))
	for _, srv := range m.servers {
		names := make([]string, len(srv.tools))
		for i, t := range srv.tools {
			names[i] = t.Name
		}
		out = append(out, ServerInfo{
			Name:      srv.name,
			State:     srv.state,
			Available: srv.state == StateReady,
			ToolNames: names,
		})
	}
	return out
}

// ShutdownServer terminates the named server's subprocess and marks it terminated.
func (m *Manager) ShutdownServer(name string) error {
	m.mu.Lock()
	srv, ok := m.servers[name]
	if ok {
		srv.state = StateTerminated
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrServerUnavailable, name)
	}

	m.logger.Info("Tool server shut down", "server", name)
	return srv.terminate()
}

// ShutdownAll terminates every registered server, collecting failures.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error { return m.ShutdownServer(name) })
	}
	return g.Wait()
}

// remove detaches and returns the named server without terminating it.
func (m *Manager) remove(name string) *server {
	m.mu.Lock()
	defer m.mu.Unlock()
	srv, ok := m.servers[name]
	if !ok {
		return nil
	}
	delete(m.servers, name)
	return srv
}
