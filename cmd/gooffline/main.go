// gooffline resolves a project's dependencies and build plugins into a local
// repository so that later builds can run offline.
package main

import (
	"os"

	"github.com/hupe1980/gooffline/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
