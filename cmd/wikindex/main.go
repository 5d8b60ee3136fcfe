// Package main provides the entry point for the wikindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/wikindex/cmd/wikindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
