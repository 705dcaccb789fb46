// Command apm tunes, evaluates and stores regression models described by a
// YAML experiment file, and explores benchmark datasets.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "apm:", err)
		os.Exit(1)
	}
}
