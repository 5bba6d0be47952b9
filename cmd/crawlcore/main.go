// Package main is the entry point for the crawlcore CLI.
package main

import (
	"os"

	"github.com/jmylchreest/crawlcore/cmd/crawlcore/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
