package actions

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/forge/internal/errs"
	"github.com/jmylchreest/forge/internal/executor"
	"github.com/jmylchreest/forge/internal/plugin"
)

func testPlugin() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:    "go-service",
		Version: "1.0.0",
		Dir:     "/plugins/go-service",
		Actions: map[string][]string{
			"build": {"go vet ./...", "go build ./...", "echo done"},
		},
	}
}

func TestRunSequence(t *testing.T) {
	runner := executor.NewMockProcessRunner()
	r := NewRunner(runner, nil, nil, nil)

	require.NoError(t, r.Run(context.Background(), testPlugin(), "build", "/work/shop"))

	calls := runner.Calls()
	require.Len(t, calls, 3)
	for i, want := range []string{"go vet ./...", "go build ./...", "echo done"} {
		assert.Equal(t, want, calls[i].Args[len(calls[i].Args)-1])
		assert.Equal(t, "/work/shop", calls[i].Dir)
	}
	assert.Contains(t, calls[0].Env, "FORGE_PLUGIN=go-service")
	assert.Contains(t, calls[0].Env, "FORGE_PLUGIN_DIR=/plugins/go-service")
	assert.Contains(t, calls[0].Env, "FORGE_PROJECT_DIR=/work/shop")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	runner := executor.NewMockProcessRunner()
	runner.RunFunc = func(ctx context.Context, cmd executor.Command) (executor.Result, error) {
		if strings.HasPrefix(cmd.Args[len(cmd.Args)-1], "go build") {
			return executor.Result{ExitCode: 2}, errors.New("exit status 2")
		}
		return executor.Result{}, nil
	}

	err := NewRunner(runner, nil, nil, nil).Run(context.Background(), testPlugin(), "build", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")
	assert.Contains(t, err.Error(), "exit code 2")
	assert.Equal(t, 2, runner.CallCount())
}

func TestRunUnknownAction(t *testing.T) {
	runner := executor.NewMockProcessRunner()
	err := NewRunner(runner, nil, nil, nil).Run(context.Background(), testPlugin(), "deploy", t.TempDir())
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Zero(t, runner.CallCount())
}

func TestRunRealShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell actions are tested on unix")
	}
	dir := t.TempDir()
	p := &plugin.Descriptor{
		Name:    "demo",
		Version: "0.1.0",
		Actions: map[string][]string{
			"setup": {`printf '%s' "$FORGE_PLUGIN" > plugin.txt`, "echo ok"},
		},
	}

	var stdout bytes.Buffer
	require.NoError(t, NewRunner(executor.NewRealProcessRunner(), &stdout, nil, nil).Run(context.Background(), p, "setup", dir))

	data, err := os.ReadFile(filepath.Join(dir, "plugin.txt"))
	require.NoError(t, err)
	assert.Equal(t, "demo", string(data))
	assert.Equal(t, "ok\n", stdout.String())
}
