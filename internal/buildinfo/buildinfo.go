// Package buildinfo carries the release stamp set with -ldflags, falling
// back to the VCS settings the Go toolchain records.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X pados/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var fillOnce sync.Once

func fill() {
	fillOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "unknown" {
					Commit = s.Value
					if len(Commit) > 12 {
						Commit = Commit[:12]
					}
				}
			case "vcs.time":
				if Date == "unknown" {
					Date = s.Value
				}
			}
		}
	})
}

// Short returns a compact build identifier for titles and banners.
func Short() string {
	fill()
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// String returns version, commit and date on one line.
func String() string {
	fill()
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
