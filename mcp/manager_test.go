package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToolServer speaks newline-delimited JSON-RPC over in-memory pipes,
// standing in for a spawned subprocess.
type fakeToolServer struct {
	mu         sync.Mutex
	tools      []ToolDescriptor
	listErr    string
	silent     bool
	terminated bool
	callArgs   []map[string]any
}

func (f *fakeToolServer) start(command []string) (io.WriteCloser, io.Reader, func() error, error) {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	go f.serve(stdinR, stdoutW)
	terminate := func() error {
		f.mu.Lock()
		f.terminated = true
		f.mu.Unlock()
		stdinW.Close()
		stdoutW.Close()
		return nil
	}
	return stdinW, stdoutR, terminate, nil
}

func (f *fakeToolServer) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

func (f *fakeToolServer) serve(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if f.silent {
			continue
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "initialize":
			resp["result"] = map[string]any{"protocolVersion": "0.1.0"}
		case "tools/list":
			if f.listErr != "" {
				resp["error"] = map[string]any{"code": -32000, "message": f.listErr}
				break
			}
			tools := make([]map[string]any, 0, len(f.tools))
			for _, t := range f.tools {
				tools = append(tools, map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"inputSchema": t.InputSchema,
				})
			}
			resp["result"] = map[string]any{"tools": tools}
		case "tools/call":
			var params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			_ = json.Unmarshal(req.Params, &params)
			f.mu.Lock()
			f.callArgs = append(f.callArgs, params.Arguments)
			f.mu.Unlock()
			resp["result"] = map[string]any{
				"content": []map[string]any{{"type": "text", "text": "ran " + params.Name}},
			}
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}

		payload, _ := json.Marshal(resp)
		w.Write(append(payload, '\n'))
	}
}

func fileTools() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "read_file",
			Description: "Read a file from disk",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
			},
		},
		{Name: "list_dir", Description: "List a directory"},
	}
}

func newTestManager(t *testing.T, fake *fakeToolServer) *Manager {
	t.Helper()
	m := NewManager(func(o *ManagerOptions) {
		o.HandshakeTimeout = time.Second
		o.CallTimeout = time.Second
	})
	m.start = fake.start
	return m
}

func TestManager_RegisterAndCall(t *testing.T) {
	fake := &fakeToolServer{tools: fileTools()}
	m := newTestManager(t, fake)
	t.Cleanup(func() { m.ShutdownAll(context.Background()) })

	require.NoError(t, m.RegisterServer(context.Background(), "files", []string{"fake"}))

	servers := m.ListServers()
	require.Len(t, servers, 1)
	assert.Equal(t, "files", servers[0].Name)
	assert.Equal(t, StateReady, servers[0].State)
	assert.True(t, servers[0].Available)
	assert.Equal(t, []string{"read_file", "list_dir"}, servers[0].ToolNames)

	result, err := m.CallTool(context.Background(), "files", "read_file", map[string]any{"path": "/etc/hosts"})
	require.NoError(t, err)
	assert.Contains(t, string(result), "ran read_file")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.callArgs, 1)
	assert.Equal(t, map[string]any{"path": "/etc/hosts"}, fake.callArgs[0])
}

func TestManager_ToolSchemasQualifyNames(t *testing.T) {
	fake := &fakeToolServer{tools: fileTools()}
	m := newTestManager(t, fake)
	t.Cleanup(func() { m.ShutdownAll(context.Background()) })

	require.NoError(t, m.RegisterServer(context.Background(), "files", []string{"fake"}))

	schemas := m.ToolSchemas([]string{"files", "missing"})
	require.Len(t, schemas, 2)
	assert.Equal(t, "function", schemas[0].Type)
	assert.Equal(t, "files:read_file", schemas[0].Function.Name)
	assert.Equal(t, "files:list_dir", schemas[1].Function.Name)
	assert.Equal(t, "Read a file from disk", schemas[0].Function.Description)
	assert.NotNil(t, schemas[0].Function.Parameters)
}

func TestManager_HandshakeFailureTerminatesProcess(t *testing.T) {
	fake := &fakeToolServer{listErr: "listing unsupported"}
	m := newTestManager(t, fake)

	err := m.RegisterServer(context.Background(), "files", []string{"fake"})
	require.ErrorIs(t, err, ErrRPC)
	assert.True(t, fake.isTerminated())
	assert.Empty(t, m.ListServers())
}

func TestManager_HandshakeTimeoutTerminatesProcess(t *testing.T) {
	fake := &fakeToolServer{silent: true}
	m := NewManager(func(o *ManagerOptions) {
		o.HandshakeTimeout = 50 * time.Millisecond
		o.CallTimeout = time.Second
	})
	m.start = fake.start

	err := m.RegisterServer(context.Background(), "files", []string{"fake"})
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, fake.isTerminated())
	assert.Empty(t, m.ListServers())
}

func TestManager_CallToolUnavailable(t *testing.T) {
	fake := &fakeToolServer{tools: fileTools()}
	m := newTestManager(t, fake)

	_, err := m.CallTool(context.Background(), "files", "read_file", nil)
	assert.ErrorIs(t, err, ErrServerUnavailable)

	require.NoError(t, m.RegisterServer(context.Background(), "files", []string{"fake"}))
	require.NoError(t, m.ShutdownServer("files"))
	assert.True(t, fake.isTerminated())

	_, err = m.CallTool(context.Background(), "files", "read_file", nil)
	assert.ErrorIs(t, err, ErrServerUnavailable)

	servers := m.ListServers()
	require.Len(t, servers, 1)
	assert.Equal(t, StateTerminated, servers[0].State)
	assert.False(t, servers[0].Available)
}

func TestManager_ReRegisterReplacesServer(t *testing.T) {
	old := &fakeToolServer{tools: fileTools()}
	m := newTestManager(t, old)
	require.NoError(t, m.RegisterServer(context.Background(), "files", []string{"fake"}))

	replacement := &fakeToolServer{tools: []ToolDescriptor{{Name: "write_file", Description: "Write a file"}}}
	m.start = replacement.start
	require.NoError(t, m.RegisterServer(context.Background(), "files", []string{"fake", "v2"}))
	t.Cleanup(func() { m.ShutdownAll(context.Background()) })

	assert.True(t, old.isTerminated())
	servers := m.ListServers()
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"write_file"}, servers[0].ToolNames)
}

func TestManager_ShutdownAll(t *testing.T) {
	a := &fakeToolServer{tools: fileTools()}
	m := newTestManager(t, a)
	require.NoError(t, m.RegisterServer(context.Background(), "alpha", []string{"fake"}))

	b := &fakeToolServer{tools: fileTools()}
	m.start = b.start
	require.NoError(t, m.RegisterServer(context.Background(), "beta", []string{"fake"}))

	require.NoError(t, m.ShutdownAll(context.Background()))
	assert.True(t, a.isTerminated())
	assert.True(t, b.isTerminated())

	_, err := m.CallTool(context.Background(), "alpha", "read_file", nil)
	assert.ErrorIs(t, err, ErrServerUnavailable)
}

func TestManager_ShutdownUnknownServer(t *testing.T) {
	m := NewManager()
	assert.ErrorIs(t, m.ShutdownServer("ghost"), ErrServerUnavailable)
}
