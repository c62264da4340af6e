// Package main is the entry point for the warehousesim CLI.
// The CLI is the terminal tool for running simulations against the controller API.
package main

import (
	"os"

	"warehousesim/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
