// Command fsmdemo drives an order workflow state machine from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amp-labs/amp-fsm/cmd/fsmdemo/commands"
	"github.com/amp-labs/amp-fsm/shutdown"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	handler, ctx := shutdown.NewHandler(context.Background())

	err := commands.Execute(ctx, version, handler)

	cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err = errors.Join(err, handler.Shutdown(cleanupCtx))

	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
