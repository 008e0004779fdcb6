// Package main provides the qsql command-line compiler.
package main

import (
	"os"

	"github.com/leapstack-labs/qsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
