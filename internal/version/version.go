// Package version provides build-time version information.
//
// Set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/alpaca-stream/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/alpaca-stream/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "runtime/debug"

var (
	// Version is the semantic version (e.g., "1.0.0").
	Version = "dev"

	// Commit is the short git commit hash. Falls back to the VCS revision
	// embedded by the go tool when not set.
	Commit = ""
)

// Revision returns Commit, or the embedded VCS revision when Commit is unset.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Revision() + ")"
}

// UserAgent is sent in the websocket handshake.
func UserAgent() string {
	return "alpaca-stream/" + Version
}
