// Command loader searches for the maximum sustainable throughput of an HTTP service.
package main

import (
	"os"

	"github.com/wesleyorama2/loader/internal/cli"
)

// Main runs the CLI and returns the process exit status.
func Main() int {
	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
