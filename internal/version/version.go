// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X postapi/internal/version.Version=v1.0.0 -X postapi/internal/version.Commit=$(git rev-parse --short HEAD) -X postapi/internal/version.Date=$(date -u +%FT%TZ)"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line summary of the build.
func Info() string {
	return fmt.Sprintf("postapi %s (commit: %s, built: %s)", Version, Commit, Date)
}
