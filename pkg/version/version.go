// Package version holds build-time version information.
package version

var (
	// Version is the wattlog version. Set at build time via ldflags.
	Version = "dev"
	// GitCommit is the git commit the binary was built from. Set at build time.
	GitCommit = "unknown"
)
