// Command autobuyctl is the operator CLI: it mints API tokens, imports
// approval rules and shows how seat labels normalize.
package main

import (
	"fmt"
	"os"

	"github.com/iliyamo/ticket-autobuy/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
