// Command adam decomposes a request into specialist subtasks, runs them on
// models sized to the host's free resources, and merges the results.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
