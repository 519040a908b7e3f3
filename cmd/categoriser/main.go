// Package main is the entry point for the categoriser CLI.
package main

import (
	"os"

	// Embedded zone database for CRON_TIMEZONE on minimal images.
	_ "time/tzdata"

	"github.com/dvloznov/actual-categoriser/cmd/categoriser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
