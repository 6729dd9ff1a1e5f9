// Package main is the entry point of the hiltest command.
package main

import (
	"fmt"
	"os"

	"github.com/hiltest/hiltest/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil && !cmd.Reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cmd.ExitCode(err))
}
