package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "info", Format: format, OutputPaths: []string{"stderr"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	_, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/sub/log.txt"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestZapLogger_FieldTypes(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("label processed",
		Identifier("0001"),
		Int("word_count", 12),
		Int64("bytes", 2048),
		Float64("score", 0.75),
		Bool("kept", true),
		Strings("always_delete", []string{"trs"}),
		Duration("elapsed", 3*time.Millisecond),
		Any("extra", map[string]int{"a": 1}),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "label processed", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "0001", ctx[KeyIdentifier])
	assert.Equal(t, int64(12), ctx["word_count"])
	assert.Equal(t, int64(2048), ctx["bytes"])
	assert.Equal(t, 0.75, ctx["score"])
	assert.Equal(t, true, ctx["kept"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_LevelsAreFiltered(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.Debug("hidden")
	l.Info("shown")
	l.Warn("warned")
	l.Error("failed")

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, 0, logs.FilterMessage("hidden").Len())
	assert.Equal(t, zapcore.WarnLevel, logs.FilterMessage("warned").All()[0].Level)
}

func TestZapLogger_WithDoesNotMutateParent(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	child := l.With(RunID("run-1"), Stage("conflict_resolver"))
	child.Info("child")
	l.Info("parent")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "run-1", logs.All()[0].ContextMap()[KeyRunID])
	assert.NotContains(t, logs.All()[1].ContextMap(), KeyRunID)
}

func TestZapLogger_Named(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Named("labeltraiter").Named("export").Info("wrote")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "labeltraiter.export", logs.All()[0].LoggerName)
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, LogConfig{Level: "debug", Format: "json"})

	l.Debug("vocabulary loaded", Int("size", 3), Path("words.txt"))
	require.NoError(t, l.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "vocabulary loaded", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, float64(3), entry["size"])
	assert.Equal(t, "words.txt", entry[KeyPath])
	assert.Contains(t, entry, "ts")
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
		l.Fatal("msg")
	})
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.NoError(t, l.Sync())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, _ := newObservedLogger(zapcore.InfoLevel)
	assert.Equal(t, l, OrNop(l))
}

func TestDefault_SetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, logs := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	SetDefault(nil)

	Default().Info("through default")
	assert.Equal(t, 1, logs.Len())
}
