// Package main provides the entry point for the sdex CLI.
package main

import (
	"os"

	"github.com/chuanqiong/sdex/cmd/sdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
