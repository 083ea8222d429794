package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// These variables are set during build time
var (
	// Version is the current version
	Version = "0.0.0"

	// Branch is current branch name the code is built off.
	Branch = "unknown"

	// Revision is the short commit hash of source tree
	Revision = "unknown"

	// BuiltAt is the build time
	BuiltAt = "unknown"

	// GoVersion is the go version used to build
	GoVersion = "unknown"
)

// Info contains version information
type Info struct {
	Version   string `json:"version"`
	Branch    string `json:"branch"`
	Revision  string `json:"revision"`
	BuiltAt   string `json:"builtAt"`
	GoVersion string `json:"goVersion"`
}

// GetVersionInfo returns version information, filling unset build-time
// values from the binary's embedded build info when available.
func GetVersionInfo() Info {
	version := Version
	branch := Branch
	revision := Revision
	builtAt := BuiltAt

	if revision == "unknown" || builtAt == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if revision == "unknown" && len(s.Value) >= 7 {
						revision = s.Value[:7]
					}
				case "vcs.time":
					if builtAt == "unknown" {
						builtAt = s.Value
					}
				}
			}
			if version == "0.0.0" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
				version = strings.TrimPrefix(bi.Main.Version, "v")
			}
		}
	}

	// Use current time if built time wasn't set
	if builtAt == "unknown" {
		builtAt = time.Now().Format(time.RFC3339)
	}

	return Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		BuiltAt:   builtAt,
		GoVersion: runtime.Version(),
	}
}

// String returns a string representation of version information
func (i Info) String() string {
	return fmt.Sprintf("Version: %s\nBranch: %s\nRevision: %s\nBuilt At: %s\nGo Version: %s",
		i.Version, i.Branch, i.Revision, i.BuiltAt, i.GoVersion)
}

// JSON returns a JSON representation of version information
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Print prints version information to stdout
func Print() {
	fmt.Println(GetVersionInfo().String())
}
