package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at link time.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

const product = "automeet"

// Info describes the running binary.
type Info struct {
	Product   string `json:"product"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// Release reports whether the binary was built from a tagged version.
func (i Info) Release() bool {
	return i.Version != "dev" && !i.Dirty
}

// Get returns the build information, filling blanks from the embedded
// VCS settings.
func Get() Info {
	info := Info{
		Product:   product,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// String renders the version for CLI output, e.g. "1.2.0 (a1b2c3d, dirty)".
func (i Info) String() string {
	var extra []string
	if i.GitCommit != "" {
		extra = append(extra, i.GitCommit)
	}
	if i.Dirty {
		extra = append(extra, "dirty")
	}
	if len(extra) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(extra, ", "))
}

// UserAgent is sent by outbound provider clients.
func UserAgent() string {
	return product + "/" + Version
}
