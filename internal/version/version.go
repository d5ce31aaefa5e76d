// Package version reports the build identity of the sitebuilder binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/sitebuilder/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, also set through ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Resolved returns Version, falling back to the module version embedded by
// `go install` when no ldflags were given.
func Resolved() string {
	if Version != "unknown" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String is the one-line form printed by --version.
func String() string {
	return fmt.Sprintf("sitebuilder %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
