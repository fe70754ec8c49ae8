// Package version reports build information.
package version

import "fmt"

// These variables are set at build time via -ldflags
// Example: go build -ldflags "-X github.com/membrs/membrs/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Info is the JSON shape of /api/version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String renders a one-line banner.
func String() string {
	return fmt.Sprintf("membrs %s (%s, built %s)", Version, Commit, BuildTime)
}
