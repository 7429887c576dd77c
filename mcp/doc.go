// Package mcp manages subprocess-based tool servers speaking JSON-RPC 2.0
// over newline-delimited messages on stdin/stdout. The Manager spawns a
// server, performs the initialize and tools/list handshake under a bounded
// wait, and exposes the discovered tools as backend-agnostic function
// schemas. Request ids are generated per server from an atomic counter and
// responses are correlated by id, so concurrent tool calls on one server are
// safe; a failed handshake always terminates the spawned process rather than
// leaking it.
package mcp
