// Package version carries build metadata injected with -ldflags.
package version

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Version is the release version, without a leading "v".
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// ErrTagMismatch is returned when a release tag disagrees with Version.
var ErrTagMismatch = errors.New("release tag does not match version")

// String formats the build metadata for the version subcommand.
func String() string {
	return fmt.Sprintf("tslumd %s (%s, built %s)", Version, GitSHA, BuildTime)
}

// CheckReleaseTag compares a git ref such as "refs/tags/0.2.1" with version.
// Refs that are not tags always pass. A leading "v" on the tag is ignored.
func CheckReleaseTag(ref, version string) error {
	tag, ok := strings.CutPrefix(ref, "refs/tags/")
	if !ok {
		return nil
	}
	if strings.TrimPrefix(tag, "v") != strings.TrimPrefix(version, "v") {
		return fmt.Errorf("%w: tag %s, version %s", ErrTagMismatch, tag, version)
	}
	return nil
}
