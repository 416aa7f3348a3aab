// Package version carries build metadata stamped in via -ldflags.
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

// String renders the full build identifier for -version output.
func String() string {
	return fmt.Sprintf("obu-bench %s (%s, built %s)", Version, GitSHA, BuildTime)
}
