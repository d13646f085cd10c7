package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	called := false
	require.NoError(t, f.Emit(map[string]int{"claims": 3}, func(io.Writer) { called = true }))
	assert.False(t, called)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"claims": float64(3)}, resp.Data)
}

func TestOutputFormatter_TextEmit(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Emit(42, func(w io.Writer) { fmt.Fprintln(w, "42 claims") }))
	assert.Equal(t, "42 claims\n", buf.String())
}

func TestOutputFormatter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("TIMEOUT", "query timed out", map[string]string{"limit": "5s"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TIMEOUT", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)

	buf.Reset()
	f.Format = "text"
	require.NoError(t, f.Error("TIMEOUT", "query timed out", nil))
	assert.Equal(t, "Error [TIMEOUT]: query timed out\n", buf.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open graph store", cause)

	assert.Equal(t, "failed to open graph store: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("run: %w", err)))
	assert.Equal(t, ExitFailure, GetExitCode(cause))
	assert.Equal(t, "rebuild failed", NewExitError(ExitFailure, "rebuild failed").Error())
}
