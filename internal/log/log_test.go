package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtxFallsBackToRoot(t *testing.T) {
	assert.Same(t, root, Ctx(context.Background()))
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), newLogger(&buf))
	ctx = With(ctx, "request_id", "abc")
	ctx = With(ctx, "scenario", "small")

	Ctx(ctx).InfoContext(ctx, "solved", "cost", 12.5)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "solved", line["msg"])
	assert.Equal(t, "abc", line["request_id"])
	assert.Equal(t, "small", line["scenario"])
	assert.Equal(t, 12.5, line["cost"])
}

func TestConfigure(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { level.Set(prev) })

	require.NoError(t, Configure("debug"))
	assert.Equal(t, slog.LevelDebug, Level())

	require.NoError(t, Configure(""))
	assert.Equal(t, slog.LevelDebug, Level())

	require.NoError(t, Configure(" Warning "))
	assert.Equal(t, slog.LevelWarn, Level())

	assert.Error(t, Configure("loud"))
	assert.Equal(t, slog.LevelWarn, Level())
}

func TestLevelFiltersDerivedLoggers(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { level.Set(prev) })

	var buf bytes.Buffer
	ctx := With(WithLogger(context.Background(), newLogger(&buf)), "run", 1)

	require.NoError(t, Configure("error"))
	Ctx(ctx).WarnContext(ctx, "dropped")
	assert.Zero(t, buf.Len())

	require.NoError(t, Configure("info"))
	Ctx(ctx).WarnContext(ctx, "kept")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}
