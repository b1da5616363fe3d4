// Package logging builds the hclog loggers used across forge.
package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/term"
)

// Options controls logger construction.
type Options struct {
	// Name is the root logger name. Defaults to "forge".
	Name string

	// Verbose enables debug output.
	Verbose bool

	// Quiet suppresses everything below error level. Verbose wins if both are set.
	Quiet bool

	// Output is where log lines go. Defaults to os.Stderr.
	Output io.Writer
}

// New creates the root logger. Colour is only enabled when Output is a terminal.
func New(opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = "forge"
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := hclog.Info
	switch {
	case opts.Verbose:
		level = hclog.Debug
	case opts.Quiet:
		level = hclog.Error
	}

	color := hclog.ColorOff
	if isTerminal(output) {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:            name,
		Level:           level,
		Output:          output,
		Color:           color,
		DisableTime:     !opts.Verbose,
		IncludeLocation: opts.Verbose,
	})
}

// OrNull returns logger, or a logger that discards everything when logger is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
