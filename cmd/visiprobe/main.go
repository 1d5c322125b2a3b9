// Command visiprobe scans how visible a business is to AI assistants and
// serves the same scan as a streaming HTTP API.
package main

import (
	"github.com/visiprobe/visiprobe/internal/cmd"
	"github.com/visiprobe/visiprobe/internal/server/handlers"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.ExitWithCodeStderr(cmd.ExitCodeFor(err), failureSummary(err), err)
	}
}

// failureSummary names the failing stage for the exit report.
func failureSummary(err error) string {
	if cmd.IsUsageError(err) {
		return "Invalid command usage"
	}
	return "Command failed"
}
