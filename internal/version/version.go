// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// UserAgent is sent on every request to the observation service.
func UserAgent() string {
	return fmt.Sprintf("neocrisis-autofire/%s (%s)", Version, GitSHA)
}

// String renders the full build line printed by -version.
func String() string {
	return fmt.Sprintf("autofire %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
