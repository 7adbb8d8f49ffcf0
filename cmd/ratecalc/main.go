// Package main is the entry point for the ratecalc CLI.
package main

import (
	"os"

	"freightrate/cmd/ratecalc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
