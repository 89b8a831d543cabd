// Command split-levels splits the manifest into theory, puzzle and index files for the runtime store.
package main

import (
	"os"

	"github.com/NLarchive/circuit-sensei-sub001/internal/cli"
)

func main() {
	os.Exit(cli.SplitLevels(os.Args[1:], os.Stdout, os.Stderr))
}
