// Command deepflow-agent captures, aggregates, and ships network
// observability data to a deepflow ingester.
package main

import (
	"fmt"
	"os"

	"deepflow.io/agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
