package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule  = "pkt.systems/forgecode"
	unknownVersion = "v0.0.0-unknown"
	productName    = "forgecode"
)

// buildVersion is set via -ldflags "-X pkt.systems/forgecode/internal/version.buildVersion=...".
var buildVersion = ""

var readBuildInfo = debug.ReadBuildInfo

// Current returns the release version, dropping any +dirty marker.
func Current() string {
	return strings.TrimSuffix(resolve(), "+dirty")
}

// CurrentWithDirty is Current with the +dirty marker kept.
func CurrentWithDirty() string {
	return resolve()
}

// Module returns the main module path.
func Module() string {
	if info, ok := readBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// UserAgent identifies outbound requests to the execution backend.
func UserAgent() string {
	return productName + "/" + Current()
}

// Banner is the one line printed by the version command.
func Banner() string {
	return productName + " " + CurrentWithDirty() + " (" + Module() + ")"
}

func resolve() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return v
	}
	info, ok := readBuildInfo()
	if !ok {
		return unknownVersion
	}
	if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
		return v
	}
	if v := pseudoVersion(info); v != "" {
		return v
	}
	return unknownVersion
}

// pseudoVersion derives a Go style pseudo version from VCS build settings.
func pseudoVersion(info *debug.BuildInfo) string {
	if info == nil {
		return ""
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	revision, stamp := settings["vcs.revision"], settings["vcs.time"]
	if revision == "" || stamp == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
	if settings["vcs.modified"] == "true" {
		ver += "+dirty"
	}
	return ver
}
