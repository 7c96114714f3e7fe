// Package version carries the build version and the versions of the
// formats this service reads and writes.
package version

import (
	"fmt"
	"runtime"
)

// Build is the release version, set at link time with
// -ldflags "-X github.com/beaconsearch/beacon/internal/version.Build=v1.2.3".
var Build = "dev"

// Commit is the source revision, set at link time.
var Commit = "unknown"

// Format versions.
const (
	// DumpFormatVersionCurrent is the snapshot manifest format this build writes.
	DumpFormatVersionCurrent = 1
	// DumpFormatVersionMin is the oldest snapshot manifest this build can load.
	DumpFormatVersionMin = 1
)

// SupportedVersions tracks which versions of a format are readable.
type SupportedVersions struct {
	CurrentVersion int
	MinVersion     int
}

// DumpVersions returns the supported snapshot manifest versions.
func DumpVersions() SupportedVersions {
	return SupportedVersions{
		CurrentVersion: DumpFormatVersionCurrent,
		MinVersion:     DumpFormatVersionMin,
	}
}

// CanRead returns true if the given version is readable by this build.
func (sv SupportedVersions) CanRead(version int) bool {
	return version >= sv.MinVersion && version <= sv.CurrentVersion
}

// ErrVersionTooOld indicates a format version is older than the minimum supported.
type ErrVersionTooOld struct {
	Format     string
	Version    int
	MinVersion int
}

func (e *ErrVersionTooOld) Error() string {
	return fmt.Sprintf("%s format version %d is too old (minimum: %d)", e.Format, e.Version, e.MinVersion)
}

// ErrVersionTooNew indicates a format version is newer than this build can read.
type ErrVersionTooNew struct {
	Format         string
	Version        int
	CurrentVersion int
}

func (e *ErrVersionTooNew) Error() string {
	return fmt.Sprintf("%s format version %d is too new for this build (current: %d)", e.Format, e.Version, e.CurrentVersion)
}

// CheckDumpVersion validates a snapshot manifest version is readable.
func CheckDumpVersion(version int) error {
	sv := DumpVersions()
	if version < sv.MinVersion {
		return &ErrVersionTooOld{Format: "dump", Version: version, MinVersion: sv.MinVersion}
	}
	if version > sv.CurrentVersion {
		return &ErrVersionTooNew{Format: "dump", Version: version, CurrentVersion: sv.CurrentVersion}
	}
	return nil
}

// Info is the build description reported by the CLI and the health endpoint.
type Info struct {
	Version           string `json:"version"`
	Commit            string `json:"commit"`
	GoVersion         string `json:"go_version"`
	DumpFormatVersion int    `json:"dump_format_version"`
}

func Get() Info {
	return Info{
		Version:           Build,
		Commit:            Commit,
		GoVersion:         runtime.Version(),
		DumpFormatVersion: DumpFormatVersionCurrent,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("beacon %s (commit %s, %s, dump format v%d)", i.Version, i.Commit, i.GoVersion, i.DumpFormatVersion)
}
