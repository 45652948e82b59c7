package utils

import (
	"runtime/debug"
)

const (
	unknownVersion       = "unknown"
	develVersion         = "(devel)"
	vcsRevisionKey       = "vcs.revision"
	vcsModifiedKey       = "vcs.modified"
	shortRevisionLength  = 12
	dirtyRevisionSuffix  = "-dirty"
	revisionVersionLabel = "devel-"
)

// Version is set at link time with -ldflags "-X github.com/temirov/repoview/internal/utils.Version=v1.2.3".
var Version string

// GetApplicationVersion reports the linked version, then the module version
// from build info, then the VCS revision recorded by the Go toolchain.
func GetApplicationVersion() string {
	if Version != "" {
		return Version
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return unknownVersion
	}
	return versionFromBuildInfo(buildInfo)
}

func versionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	if buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}
	var revision string
	var modified bool
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case vcsRevisionKey:
			revision = setting.Value
		case vcsModifiedKey:
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return unknownVersion
	}
	if len(revision) > shortRevisionLength {
		revision = revision[:shortRevisionLength]
	}
	if modified {
		revision += dirtyRevisionSuffix
	}
	return revisionVersionLabel + revision
}
