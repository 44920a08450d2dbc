// Command veloq compiles YAML query files to parameterized SQL and runs them.
package main

import (
	"fmt"
	"os"

	"github.com/syssam/veloq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "veloq:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
