package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// shortSHALength is how many characters of a revision are shown.
const shortSHALength = 7

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("remote-alarm %s (commit %s, built %s)", Version, Revision(), BuildTime)
}

// Revision returns Commit, or the VCS revision stamped by the Go toolchain
// when Commit was not injected.
func Revision() string {
	if Commit != "none" {
		return Commit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= shortSHALength {
			return setting.Value[:shortSHALength]
		}
	}

	return Commit
}
