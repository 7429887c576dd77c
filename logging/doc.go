// Package logging provides a minimal logging interface and adapters for the
// control room.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the session registry, routing strategies and the tool
// server manager use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ControlRoomLogger with contextual helpers for sessions and backends
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json")
//	room := controlroom.New(controlroom.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
