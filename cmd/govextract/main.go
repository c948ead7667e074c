// Package main is the entry point for the govextract CLI.
package main

import (
	"os"

	"github.com/jmylchreest/govextract/cmd/govextract/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
