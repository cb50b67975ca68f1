// Package main is the entry point for the spendctl CLI.
package main

import (
	"os"

	"github.com/vnmchuo/vendor-spend/cmd/spendctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
