// Command generate-variants expands levels-manifest.json into one file per level variant plus the difficulty index.
package main

import (
	"os"

	"github.com/NLarchive/circuit-sensei-sub001/internal/cli"
)

func main() {
	os.Exit(cli.GenerateVariants(os.Args[1:], os.Stdout, os.Stderr))
}
