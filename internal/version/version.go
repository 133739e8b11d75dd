// Package version carries build metadata injected with -ldflags, for example:
// go build -ldflags "-X git.home.luguber.info/inful/hiveagent/internal/version.Version=v0.3.0".
package version

import "fmt"

// Version is the agent release.
var Version = "dev"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("hiveagent %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
