package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// maxLine caps a single JSON-RPC line; tool results can be large but a line
// beyond this is a protocol violation, not data.
const maxLine = 16 * 1024 * 1024

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// wire is one server's newline-delimited JSON-RPC channel. Request ids come
// from an atomic counter and responses are matched by id, so interleaved or
// late responses never get attributed to the wrong call. A background
// goroutine owns all reads; writes are serialized by a mutex.
type wire struct {
	writeMu sync.Mutex
	w       io.Writer

	nextID atomic.Int64

	lines   chan []byte
	readErr atomic.Pointer[error]

	pendingMu sync.Mutex
	pending   map[int64]chan response
}

func newWire(r io.Reader, w io.Writer) *wire {
	c := &wire{
		w:       w,
		lines:   make(chan []byte, 16),
		pending: make(map[int64]chan response),
	}
	go c.readLoop(r)
	go c.dispatchLoop()
	return c
}

// readLoop feeds raw lines from the server's stdout into the dispatch loop.
func (c *wire) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		c.lines <- line
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.readErr.Store(&err)
	close(c.lines)
}

// dispatchLoop correlates response lines with pending calls by id.
// Notifications and responses to abandoned calls are dropped.
func (c *wire) dispatchLoop() {
	for line := range c.lines {
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil || resp.ID == 0 {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
	// Stream closed: fail everything still waiting.
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

// call sends one request and waits for its correlated response, failing
// closed when the timeout elapses or the stream ends.
func (c *wire) call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	ch := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	_, err = c.w.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response to %s within %s", ErrTimeout, method, timeout)
	case resp, ok := <-ch:
		if !ok {
			readErr := io.EOF
			if p := c.readErr.Load(); p != nil {
				readErr = *p
			}
			return nil, fmt.Errorf("server stream closed during %s: %w", method, readErr)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrRPC, resp.Error.Message)
		}
		return resp.Result, nil
	}
}
