// Package version identifies the running matrixscan build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set by ldflags, e.g.
// -X github.com/MeKo-Tech/matrixscan/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes a build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information. Fields not set by ldflags are taken
// from the VCS stamp embedded by the Go toolchain when available.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	commit := i.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", i.Version, commit, i.BuildDate, i.GoVersion)
}
