// Package main provides the entry point for the workspacex CLI.
package main

import (
	"os"

	"github.com/workspacex/workspacex/cmd/workspacex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
