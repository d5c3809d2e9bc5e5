// Package buildinfo carries version stamps injected with -ldflags.
package buildinfo

import "time"

// Set via -ldflags "-X github.com/xelth-com/assetledger/internal/buildinfo.Version=..."
var (
	Version    = "dev"
	CommitHash string
	BuildTime  string
)

var startedAt = time.Now().UTC()

// Info is the build stamp reported by /health and assetctl version
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	Uptime    string `json:"uptime"`
}

// Current returns the stamp of the running binary
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    CommitHash,
		BuildTime: BuildTime,
		Uptime:    time.Since(startedAt).Round(time.Second).String(),
	}
}
