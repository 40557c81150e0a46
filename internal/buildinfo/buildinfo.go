// Package buildinfo carries the version stamped in at link time.
package buildinfo

import "fmt"

// Set with -ldflags "-X ember/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the release version, else the commit, else "dev".
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String is the full one-line build description.
func String() string {
	return fmt.Sprintf("ember %s (commit %s, built %s)", Version, Commit, Date)
}
