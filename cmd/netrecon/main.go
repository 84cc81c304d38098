// netrecon is the command-line entry point for the network reconnaissance
// engine: port probing, banner analysis, deep scanning, topology layout,
// and the HTTP API.
package main

import (
	"github.com/RyanH-sudo/NewToolKit-sub004/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
