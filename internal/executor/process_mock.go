package executor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockProcessRunner is a mock implementation of ProcessRunner for testing.
type MockProcessRunner struct {
	// RunFunc allows tests to provide custom behavior.
	RunFunc func(ctx context.Context, cmd Command) (Result, error)

	// Delay simulates slow process execution.
	Delay time.Duration

	// ShouldTimeout if true, will block until context is cancelled.
	ShouldTimeout bool

	mu    sync.Mutex
	calls []Command
}

// Run executes the mock behavior.
func (m *MockProcessRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.mu.Unlock()

	// Simulate timeout behavior.
	if m.ShouldTimeout {
		<-ctx.Done()
		return Result{ExitCode: -1}, ctx.Err()
	}

	// Simulate delay.
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{ExitCode: -1}, ctx.Err()
		}
	}

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}

	// Default: return empty success.
	return Result{}, nil
}

// Calls returns every command passed to Run, in order.
func (m *MockProcessRunner) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// CallCount returns how many times Run was called.
func (m *MockProcessRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent command, or the zero Command.
func (m *MockProcessRunner) LastCall() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Command{}
	}
	return m.calls[len(m.calls)-1]
}

// NewMockProcessRunner creates a new mock process runner.
func NewMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{}
}

// NewTimeoutMockProcessRunner creates a mock that simulates a timeout.
func NewTimeoutMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{
		ShouldTimeout: true,
	}
}

// NewErrorMockProcessRunner creates a mock that fails with the given exit code.
func NewErrorMockProcessRunner(exitCode int, errMsg string) *MockProcessRunner {
	return &MockProcessRunner{
		RunFunc: func(ctx context.Context, cmd Command) (Result, error) {
			return Result{Stderr: []byte(errMsg), ExitCode: exitCode}, errors.New(errMsg)
		},
	}
}

// NewFailingPathsMockProcessRunner creates a mock that fails for the listed
// executables and succeeds for everything else.
func NewFailingPathsMockProcessRunner(paths ...string) *MockProcessRunner {
	failing := make(map[string]bool, len(paths))
	for _, p := range paths {
		failing[p] = true
	}
	return &MockProcessRunner{
		RunFunc: func(ctx context.Context, cmd Command) (Result, error) {
			if failing[cmd.Path] {
				return Result{ExitCode: 127}, errors.New("exit status 127")
			}
			return Result{}, nil
		},
	}
}
