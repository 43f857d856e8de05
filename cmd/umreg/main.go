package main

import (
	"os"

	"github.com/criteo/install-registry/internal/cli"
	"github.com/criteo/install-registry/internal/cli/exitcodes"
	"github.com/criteo/install-registry/internal/cli/output"
)

var version = "1.0.0"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		output.PrintError(os.Stderr, err.Error())
		os.Exit(exitcodes.FromError(err))
	}
}
