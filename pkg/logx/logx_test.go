package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger redirects output to a buffer for the duration of the test.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	logger := NewLogger("decompose")
	logger.Info("Parsed %d subtasks", 3)

	output := buf.String()
	assert.Contains(t, output, "[decompose]")
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "Parsed 3 subtasks")
	assert.Contains(t, output, "Z]")
}

func TestLogStructuredData(t *testing.T) {
	buf := setupTestLogger(t)

	NewLogger("selector").Log(LevelWarn, "degraded assignment", map[string]any{
		"subtask": "t2",
		"from":    "large",
		"to":      "small",
	})

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, "degraded assignment from=large subtask=t2 to=small"), line)
}

func TestNopLoggerDiscards(t *testing.T) {
	buf := setupTestLogger(t)

	Nop().Info("hidden")
	Nop().Error("hidden")

	var nilLogger *Logger
	nilLogger.Warn("hidden")
	OrNop(nil).Info("hidden")

	assert.Empty(t, buf.String())
}

func TestDebugGating(t *testing.T) {
	buf := setupTestLogger(t)
	t.Cleanup(func() {
		SetDebugConfig(false)
		SetDebugDomains(nil)
	})

	logger := NewLogger("runner")

	SetDebugConfig(false)
	logger.Debug("not shown")
	assert.Empty(t, buf.String())

	SetDebugConfig(true)
	SetDebugDomains([]string{"decompose"})
	logger.Debug("still not shown")
	assert.Empty(t, buf.String())
	assert.True(t, IsDebugEnabledForDomain("decompose"))

	SetDebugDomains([]string{"runner"})
	logger.Debug("shown now")
	assert.Contains(t, buf.String(), "shown now")
}

func TestPackageDebugUsesRequestID(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebugConfig(true)
	SetDebugDomains(nil)
	t.Cleanup(func() { SetDebugConfig(false) })

	ctx := WithRequestID(context.Background(), "req-42")
	Debug(ctx, "orchestra", "level %d", 1)

	assert.Contains(t, buf.String(), "[req-42]")
	assert.Contains(t, buf.String(), "[orchestra] level 1")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestRecentEntries(t *testing.T) {
	setupTestLogger(t)
	start := time.Now().UTC().Add(-time.Millisecond)

	NewLogger("aggregate-test").Log(LevelInfo, "synthesized", map[string]any{"results": 3})
	NewLogger("other-test").Info("unrelated")

	entries := RecentEntries("aggregate-test", start)
	require.Len(t, entries, 1)
	assert.Equal(t, "synthesized", entries[0].Message)
	assert.Equal(t, 3, entries[0].Data["results"])
}

func TestBufferEviction(t *testing.T) {
	b := &InMemoryLogBuffer{maxSize: 2}
	for _, msg := range []string{"a", "b", "c"} {
		b.AddLogEntry(&LogEntry{Component: "x", Message: msg})
	}

	entries := b.GetLogEntries("", time.Time{})
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Message)
	assert.Equal(t, "c", entries[1].Message)
}

func TestWrap(t *testing.T) {
	setupTestLogger(t)

	assert.NoError(t, Wrap(nil, "ignored"))

	base := errors.New("boom")
	err := Wrap(base, "load config")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "load config: boom", err.Error())
}
