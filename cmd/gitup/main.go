// Package main is the entry point for the gitup CLI.
package main

import (
	"fmt"
	"os"

	"github.com/crashappsec/gitup/cmd/gitup/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
