// The main package for the quizd executable.
package main

import (
	"github.com/quizforge/quizd/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
