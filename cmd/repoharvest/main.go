package main

import (
	"repoharvest/internal/cli"
	_ "repoharvest/internal/checks/builtin"
)

// These variables are populated by the build via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
