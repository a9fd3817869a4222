// The main package for the secscan executable.
package main

import (
	"github.com/zmahayni/SEC-Crypto-Analysis/cmd"
)

// main defers all execution to the Cobra CLI layer.
func main() {
	cmd.Execute()
}
