// Package buildinfo exposes the version stamped into the binary.
//
// Release builds set the variables with -ldflags:
//
//	-X 'github.com/m3rciful/aqibot/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/aqibot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/aqibot/core/buildinfo.Date=2026-01-01T00:00:00Z'
package buildinfo

import "runtime/debug"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the VCS revision. Without ldflags it falls back to the
	// revision recorded by the go toolchain, if any.
	Commit = "local"
	// Date is the RFC3339 build time.
	Date = ""
)

func init() {
	if Commit != "local" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			Commit = s.Value[:7]
		}
	}
}

// String formats the build as "version (commit)".
func String() string {
	return Version + " (" + Commit + ")"
}
