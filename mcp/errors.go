package mcp

import "fmt"

var (
	// ErrServerUnavailable is returned when a tool call names a server that
	// is unknown or not ready.
	ErrServerUnavailable = fmt.Errorf("tool server unavailable")

	// ErrTimeout is returned when a server does not answer a request within
	// its bounded wait.
	ErrTimeout = fmt.Errorf("tool server response timeout")

	// ErrRPC wraps an error object returned by the server inside a JSON-RPC
	// response.
	ErrRPC = fmt.Errorf("tool server rpc error")
)
