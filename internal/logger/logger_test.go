package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_WritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "quote", "debug")

	l.Warn("aggregator failed", "aggregator", "odos", "err", errors.New("timeout"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "quote", line["component"])
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "odos", line["aggregator"])
	require.Equal(t, "timeout", line["err"])
	require.Equal(t, "aggregator failed", line["message"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "api", "warn")
	l.Info("hidden")
	l.Debug("hidden")
	require.Zero(t, buf.Len())

	l.Error("shown")
	require.NotZero(t, buf.Len())
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.Info("no panic")
	require.NotNil(t, l.With("x"))
}

func TestKvToMap_OddAndNonStringKeys(t *testing.T) {
	m := kvToMap("a", 1, 2, "b", "dangling")
	require.Equal(t, map[string]interface{}{"a": 1}, m)
}
