// Package buildinfo carries the build stamp. The variables are set with
// -ldflags "-X ember/internal/buildinfo.Version=...".
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short is the tag shown in window titles and on screen: the version for
// releases, the commit for stamped dev builds, "dev" otherwise.
func Short() string {
	switch {
	case Version != "" && Version != "dev":
		return Version
	case Commit != "" && Commit != "unknown":
		return Commit
	default:
		return "dev"
	}
}

// String is the full stamp logged at boot.
func String() string {
	return fmt.Sprintf("ember %s (commit %s, built %s)", Short(), Commit, Date)
}
