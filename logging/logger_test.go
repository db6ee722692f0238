package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Logger = (*RunLogger)(nil)
var _ Logger = NoOpLogger{}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestRunLoggerFormatsAndAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf, Component: "engine"}).
		WithRun("run-1", "item-7").
		WithContext("mode", "story")

	l.Debug("hidden", "n", 1)
	l.Info("select node", "node", "1.2")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "select node", lines[0]["msg"])
	assert.Equal(t, "1.2", lines[0]["node"])
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, "item-7", lines[0]["item_id"])
	assert.Equal(t, "story", lines[0]["mode"])
}

func TestRunLoggerKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.Warn("retrying", "node", "1.2", "attempt", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "retrying", lines[0]["msg"])
	assert.Equal(t, "1.2", lines[0]["node"])
	assert.InDelta(t, 3, lines[0]["attempt"], 0)
}

func TestLogActionLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	l.LogAction("plan", "1", time.Millisecond, nil)
	l.LogAction("execute", "2", time.Millisecond, errors.New("boom"))
	l.LogRun("item-1", 12, time.Second, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, float64(12), lines[2]["step_count"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestTeeFansOut(t *testing.T) {
	var a, b bytes.Buffer
	l := Tee(
		NewLogger(&LoggerConfig{Output: &a}),
		NewLogger(&LoggerConfig{Output: &b}),
	)
	l.Warn("both")
	assert.Contains(t, a.String(), "both")
	assert.Contains(t, b.String(), "both")
}

func TestPercentInMessageKeepsArgsAsAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	l.Info("progress 50%", "node", "1.2")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "progress 50%", lines[0]["msg"])
	assert.Equal(t, "1.2", lines[0]["node"])
}

func TestTeeForwardsDomainRecords(t *testing.T) {
	var buf bytes.Buffer
	l := Tee(NoOpLogger{}, nil, NewLogger(&LoggerConfig{Output: &buf}))

	l.(ActionLogger).LogAction("plan", "1", time.Millisecond, nil)
	l.(CallRecorder).LogLLMCall("gpt", 10, time.Millisecond, true, nil)
	l.(RunRecorder).LogRun("item-1", 3, time.Second, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "Action completed", lines[0]["msg"])
	assert.Equal(t, "plan", lines[0]["action"])
	assert.Equal(t, "LLM call completed", lines[1]["msg"])
	assert.Equal(t, "Item run completed", lines[2]["msg"])
}
