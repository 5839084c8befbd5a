// The main package for the vocabsync executable.
package main

import (
	"github.com/JakeFAU/vocabsync/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
