// Command coach is the entry point for the interview coach backend.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// mock-interview REST API.
package main

import (
	"fmt"
	"os"

	"github.com/prepwise/coach-go/cmd/coach/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
