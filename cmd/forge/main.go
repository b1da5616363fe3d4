// forge - Project scaffolding from plugin templates
//
// forge detects the type of a project, fetches a template for it and renders
// every template file through an engine chosen by its extension.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/forge/internal/cli"
)

func main() {
	// Cancelling the context kills running engines and lets deferred
	// cleanup of temporary files run before exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
