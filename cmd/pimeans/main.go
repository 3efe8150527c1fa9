// Command pimeans runs distributed k-means clustering on the bulk-memory
// fabric simulator and compares it against a serial reference run.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
