package main

import (
	"fmt"
	"os"

	"github.com/artpar/layertree/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd := cli.NewRootCommand(version)
	cmd.SetVersionTemplate(fmt.Sprintf("layertree {{.Version}} (commit %s, built %s)\n", commit, date))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
