package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/executor"
)

func writeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell engines are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestAdapterEchoEngine(t *testing.T) {
	// $1 input, $2 output, $3 variables file.
	script := writeEngine(t, `{ cat "$1"; printf '|'; cat "$3"; } > "$2"`)
	dir := t.TempDir()
	input := filepath.Join(dir, "in.tpl")
	output := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(input, []byte("body"), 0o644))

	a := NewAdapter(executor.NewRealProcessRunner())
	err := a.Render(context.Background(), Invocation{
		Runtime:   "sh",
		Script:    script,
		Input:     input,
		Output:    output,
		Variables: map[string]any{"name": "World", "n": 2},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	body, vars, ok := strings.Cut(string(got), "|")
	require.True(t, ok)
	assert.Equal(t, "body", body)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(vars), &decoded))
	assert.Equal(t, map[string]any{"name": "World", "n": float64(2)}, decoded)
}

func TestAdapterFailureRemovesVarsFile(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "vars-path")
	script := writeEngine(t, `printf '%s' "$3" > "`+record+`"; echo "boom" >&2; exit 3`)
	tempDir := t.TempDir()

	a := NewAdapter(executor.NewRealProcessRunner(), WithTempDir(tempDir))
	err := a.Render(context.Background(), Invocation{
		Runtime: "sh",
		Script:  script,
		Input:   filepath.Join(dir, "page.tpl"),
		Output:  filepath.Join(dir, "page"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRenderFailed)
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "boom")

	varsPath, readErr := os.ReadFile(record)
	require.NoError(t, readErr)
	assert.Equal(t, tempDir, filepath.Dir(string(varsPath)))
	assert.NoFileExists(t, string(varsPath))

	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestAdapterFailureRemovesPartialOutput(t *testing.T) {
	script := writeEngine(t, `echo half > "$2"; exit 3`)
	dir := t.TempDir()
	input := filepath.Join(dir, "x.tpl")
	output := filepath.Join(dir, "out", "x.tpl")
	require.NoError(t, os.WriteFile(input, []byte("body"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(output), 0o755))

	a := NewAdapter(executor.NewRealProcessRunner(), WithTempDir(t.TempDir()))
	err := a.Render(context.Background(), Invocation{
		Runtime: "sh",
		Script:  script,
		Input:   input,
		Output:  output,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRenderFailed)
	assert.Contains(t, err.Error(), "status 3")
	assert.NoFileExists(t, output)
}

func TestAdapterFailureKeepsPreexistingOutput(t *testing.T) {
	script := writeEngine(t, `exit 3`)
	dir := t.TempDir()
	output := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(output, []byte("previous"), 0o644))

	a := NewAdapter(executor.NewRealProcessRunner(), WithTempDir(t.TempDir()))
	err := a.Render(context.Background(), Invocation{
		Runtime: "sh",
		Script:  script,
		Input:   filepath.Join(dir, "x.tpl"),
		Output:  output,
	})

	require.Error(t, err)
	got, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, "previous", string(got))
}

func TestAdapterPassesContractArguments(t *testing.T) {
	var seenVars string
	mock := executor.NewMockProcessRunner()
	mock.RunFunc = func(ctx context.Context, cmd executor.Command) (executor.Result, error) {
		require.Len(t, cmd.Args, 4)
		seenVars = cmd.Args[3]
		data, err := os.ReadFile(seenVars)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
		return executor.Result{}, nil
	}

	a := NewAdapter(mock)
	err := a.Render(context.Background(), Invocation{
		Runtime: "ruby",
		Script:  "/engines/render_erb.rb",
		Input:   "/t/a.erb",
		Output:  "/o/a",
	})
	require.NoError(t, err)

	call := mock.LastCall()
	assert.Equal(t, "ruby", call.Path)
	assert.Equal(t, []string{"/engines/render_erb.rb", "/t/a.erb", "/o/a", seenVars}, call.Args)
	assert.NoFileExists(t, seenVars)
}

func TestAdapterLaunchFailure(t *testing.T) {
	a := NewAdapter(executor.NewRealProcessRunner())
	err := a.Render(context.Background(), Invocation{
		Runtime: "forge-missing-runtime",
		Script:  "x",
		Input:   "in",
		Output:  "out",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRenderFailed)
	assert.Contains(t, err.Error(), "failed to launch")
}

func TestAdapterTimeout(t *testing.T) {
	a := NewAdapter(executor.NewTimeoutMockProcessRunner(), WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := a.Render(context.Background(), Invocation{Runtime: "node", Script: "s", Input: "in", Output: "out"})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRenderFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAdapterRejectsUnencodableVariables(t *testing.T) {
	mock := executor.NewMockProcessRunner()
	a := NewAdapter(mock)

	err := a.Render(context.Background(), Invocation{
		Runtime:   "node",
		Input:     "in",
		Variables: map[string]any{"ch": make(chan int)},
	})
	assert.ErrorIs(t, err, errs.ErrRenderFailed)
	assert.Zero(t, mock.CallCount())
}
