// Package version exposes build metadata. Values set with -ldflags win;
// anything left unset falls back to what the Go toolchain stamped into
// the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/smazurov/streamrec/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns version and build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fill(bi)
	}
	return info
}

// fill replaces unset fields with module and VCS stamps from bi.
func (i *Info) fill(bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "unknown" {
				i.GitCommit = shortRevision(s.Value)
			}
		case "vcs.time":
			if i.BuildDate == "unknown" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String renders the one-line form printed by `streamrec version`.
func (i Info) String() string {
	commit := i.GitCommit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("streamrec %s (commit %s, built %s, %s %s)",
		i.Version, commit, i.BuildDate, i.GoVersion, i.Platform)
}
