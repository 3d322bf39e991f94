// stepls lists and feeds stepio datasets.
package main

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-stepio/cmd/stepls/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.Version = version
	commands.Commit = commit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
