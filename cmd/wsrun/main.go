// Command wsrun runs a package script across a JavaScript monorepo in
// dependency order.
package main

import (
	"os"

	"github.com/Iron-Ham/wsrun/internal/cmd"
)

// version is set with -ldflags at build time.
var version = "dev"

func main() {
	cmd.Version = version
	os.Exit(cmd.Execute())
}
