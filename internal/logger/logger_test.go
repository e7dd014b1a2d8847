package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriterJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", true)

	Info("hidden")
	Warn("visible", "fid", 42)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, float64(42), rec["fid"])
	assert.Equal(t, "bet-mode", rec["service"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", false)

	assert.Same(t, Get(), FromContext(context.Background()))

	scoped := Component("draw")
	ctx := NewContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx))
}
