// Package main is the entry point for the tlang CLI.
package main

import (
	"os"

	"tlang/cmd/tlang/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
