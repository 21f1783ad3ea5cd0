// Command legal_extract runs a single field extraction from the shell and
// prints the result as JSON.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev" // This will be set by build flags

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
