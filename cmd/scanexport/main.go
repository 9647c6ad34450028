// Command scanexport converts nmap XML reports into JSON host records and
// CSV host and port rows.
package main

import "github.com/anstrom/scanexport/cmd/cli"

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
