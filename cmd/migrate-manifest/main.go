// Command migrate-manifest builds levels-manifest.json from base levels and legacy variant files.
package main

import (
	"os"

	"github.com/NLarchive/circuit-sensei-sub001/internal/cli"
)

func main() {
	os.Exit(cli.MigrateManifest(os.Args[1:], os.Stdout, os.Stderr))
}
