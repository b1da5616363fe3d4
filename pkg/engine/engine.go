// Package engine is the public helper for writing forge render delegates
// in Go.
//
// forge invokes a delegate as
//
//	<runtime> <script> <input> <output> <vars.json>
//
// and treats exit status 0 as success. Before rendering it checks the
// runtime with `<runtime> --version`. A delegate built with this package
// handles both:
//
//	func main() {
//		engine.Main(engine.Engine{
//			Name:    "pongo2",
//			Version: "1.0.0",
//			Render: func(ctx context.Context, tpl []byte, vars map[string]any) ([]byte, error) {
//				...
//			},
//		})
//	}
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// Exit statuses returned by Run.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// ErrUsage is returned by ParseArgs for a malformed argument list.
var ErrUsage = errors.New("usage: <script> <input> <output> <vars.json>")

// RenderFunc renders one template with the given variables.
type RenderFunc func(ctx context.Context, template []byte, vars map[string]any) ([]byte, error)

// Engine describes a delegate.
type Engine struct {
	Name    string
	Version string
	Render  RenderFunc
}

// Request is one parsed invocation.
type Request struct {
	// Script is the identifier forge passed first, or "" when the engine
	// was called with three arguments.
	Script    string
	Input     string
	Output    string
	VarsPath  string
	Variables map[string]any
}

// ParseArgs parses the arguments following the program name. Both the
// four-argument form forge uses and a three-argument form without the
// script identifier are accepted. Variables are decoded with json.Number
// so integers keep their exact text.
func ParseArgs(args []string) (*Request, error) {
	var req Request
	switch len(args) {
	case 4:
		req.Script, args = args[0], args[1:]
	case 3:
	default:
		return nil, ErrUsage
	}
	req.Input, req.Output, req.VarsPath = args[0], args[1], args[2]

	data, err := os.ReadFile(req.VarsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req.Variables); err != nil {
		return nil, fmt.Errorf("failed to parse variables: %w", err)
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return &req, nil
}

// Run executes one delegate invocation and returns the process exit
// status. args excludes the program name.
func Run(ctx context.Context, e Engine, args []string, stdout, stderr io.Writer) int {
	if len(args) == 1 && (args[0] == "--version" || args[0] == "-v") {
		fmt.Fprintf(stdout, "%s %s\n", e.Name, e.Version)
		return ExitOK
	}

	req, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", e.Name, err)
		if errors.Is(err, ErrUsage) {
			return ExitUsage
		}
		return ExitFailed
	}

	if err := render(ctx, e, req); err != nil {
		fmt.Fprintf(stderr, "%s: %s: %v\n", e.Name, req.Input, err)
		return ExitFailed
	}
	return ExitOK
}

func render(ctx context.Context, e Engine, req *Request) error {
	info, err := os.Stat(req.Input)
	if err != nil {
		return err
	}
	tpl, err := os.ReadFile(req.Input)
	if err != nil {
		return err
	}

	out, err := e.Render(ctx, tpl, req.Variables)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return err
	}
	return os.WriteFile(req.Output, out, info.Mode().Perm())
}

// Main runs e against the process arguments and exits. SIGINT and SIGTERM
// cancel the render context.
func Main(e Engine) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, e, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
