package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestErrorCarriesScopedFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithTenantID(ctx, "tenant-1")
	ctx = log.WithFields(ctx, map[string]any{"document_id": "doc-9", "attempt": 2})
	log.Error(ctx, "payment failed", errors.New("card declined"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "tenant-1", entry["tenant_id"])
	assert.Equal(t, "doc-9", entry["document_id"])
	assert.Equal(t, "card declined", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestScopedFieldsDoNotLeakToParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "cron-worker", Output: buf})

	parent := log.WithField(context.Background(), "job", "points-expiry")
	_ = log.WithTenantID(parent, "tenant-1")
	log.Info(parent, "job start")
	log.Info(context.Background(), "no context")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "points-expiry", lines[0]["job"])
	assert.NotContains(t, lines[0], "tenant_id")
	assert.NotContains(t, lines[1], "job")
}

func TestWarnStackIsOptIn(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "drift detected")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{Output: buf}).Warn(context.Background(), "drift detected")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf})
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	New(Options{Output: buf, Level: "verbose"}).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len(), "an unknown level falls back to info")

	verbose := New(Options{Output: buf, Level: "debug"})
	verbose.Debug(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"invalid": zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"debug":   zerolog.DebugLevel,
		"error":   zerolog.ErrorLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), "input %q", input)
	}
}
