// Command evaluate runs one evaluation from local files.
//
// Usage:
//
//	evaluate --input lines.txt [--config cfg.yaml] [--out dir]
//
// Every non-blank line of the input file is one sample. The config file is
// YAML or JSON using the same field names as the HTTP API and is merged
// over the defaults. The export document is written to the out directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
