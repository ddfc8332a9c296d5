package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(connect)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func noDatabase(t *testing.T) connectFunc {
	return func(context.Context) (*database, error) {
		t.Fatal("command must not open the database")
		return nil, nil
	}
}

func TestCreateThenValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, noDatabase(t), "create", "Add Stock Index", "--dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "created migration:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), "_add_stock_index.sql"))

	out, err = run(t, noDatabase(t), "validate", "--dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "validation passed")
}

func TestValidateRejectsBadFileNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.sql"), []byte("-- +goose Up\n"), 0o644))

	_, err := run(t, noDatabase(t), "validate", "--dir", dir)
	require.ErrorContains(t, err, "invalid migration filename")
}

func TestValidateEmbedded(t *testing.T) {
	_, err := run(t, noDatabase(t), "validate", "--embedded")
	require.NoError(t, err)
}

func TestSchemaCommandsSurfaceConnectErrors(t *testing.T) {
	boom := errors.New("connection refused")
	connect := func(context.Context) (*database, error) { return nil, boom }

	for _, args := range [][]string{{"up"}, {"status"}, {"version", "20260105090600"}, {"automigrate"}} {
		_, err := run(t, connect, args...)
		require.ErrorIs(t, err, boom, args)
	}
}

func TestArgumentValidation(t *testing.T) {
	_, err := run(t, noDatabase(t), "create")
	require.Error(t, err)
	_, err = run(t, noDatabase(t), "version")
	require.Error(t, err)
}
