package logger

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogger_BeforeInitIsSilent(t *testing.T) {
	Close()
	Info("nothing %d", 1)
	assert.Equal(t, io.Discard, GetWriter())
	assert.NotNil(t, L())
}

func TestLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Init(path))

	Info("flow %s started", "AuditC")
	Debug("escalating to %s", "script")
	L().Warn("stale handle", zap.String("selector", "#txtDate"))
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "flow AuditC started", first["msg"])

	var third map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.Equal(t, "#txtDate", third["selector"])
}

func TestLogger_InfoLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, InitWithOptions(path, Options{}))
	Debug("hidden")
	Error("shown")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestLogger_EmptyPath(t *testing.T) {
	assert.Error(t, Init(""))
}
