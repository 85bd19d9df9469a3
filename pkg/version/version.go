// Package version exposes the mathdex build identity.
package version

import (
	"fmt"
	"runtime"
)

// Version, Commit and Date default to development values; release
// builds override them with -ldflags "-X .../pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GoVersion is the Go toolchain the binary was built with.
var GoVersion = runtime.Version()

// BuildInfo is the structured form used for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns the full human-readable build identity.
func String() string {
	return fmt.Sprintf("mathdex %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns only the version number.
func Short() string {
	return Version
}

// GetInfo returns the build identity for structured output.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
