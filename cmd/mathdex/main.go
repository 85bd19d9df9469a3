// Package main provides the entry point for the mathdex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/mathdex/cmd/mathdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
