package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestNewSlogLoggerTo_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerTo(&buf, LogLevelWarn, "json")

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"kept"`)
	assert.Contains(t, lines[1], `"msg":"kept too"`)
}

func TestNewSlogLoggerTo_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerTo(&buf, LogLevelInfo, "text")

	logger.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestControlRoomLogger_Attributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogLoggerTo(&buf, LogLevelDebug, "json")

	logger := NewControlRoomLogger(base).
		WithComponent("routing").
		WithSession("sess-1").
		WithContext("strategy", "broadcast")

	logger.Info("Turn routed", "backend_count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "routing", record["component"])
	assert.Equal(t, "sess-1", record["session_id"])
	assert.Equal(t, "broadcast", record["strategy"])
	assert.Equal(t, float64(3), record["backend_count"])
}

func TestControlRoomLogger_CloneIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewControlRoomLogger(NewSlogLoggerTo(&buf, LogLevelDebug, "json"))

	derived := base.WithComponent("mcp")
	base.Info("from base")

	assert.NotContains(t, buf.String(), "component")
	buf.Reset()
	derived.Info("from derived")
	assert.Contains(t, buf.String(), `"component":"mcp"`)
}

func TestControlRoomLogger_NilFallsBackToNoOp(t *testing.T) {
	logger := NewControlRoomLogger(nil)
	// Must not panic.
	logger.Info("into the void")
	logger.LogBackendCall("a", 10, 0, nil)
	logger.LogBackendCall("a", 0, 0, fmt.Errorf("boom"))
	logger.LogToolCall("files", "read_file", 0, nil)
	logger.LogRoute("broadcast", 2, 2, 0)
}
