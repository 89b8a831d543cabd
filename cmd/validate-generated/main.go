// Command validate-generated compares generated variant files with a snapshot and with runtime resolution.
package main

import (
	"os"

	"github.com/NLarchive/circuit-sensei-sub001/internal/cli"
)

func main() {
	os.Exit(cli.ValidateGenerated(os.Args[1:], os.Stdout, os.Stderr))
}
