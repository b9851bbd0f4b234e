package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/tslumd/internal/version"
)

// runVersion prints build metadata. With -check-tag it fails when
// GITHUB_REF names a release tag other than the built version.
func runVersion(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(stderr)
	checkTag := fs.Bool("check-tag", false, "Fail if GITHUB_REF is a tag that differs from the version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(stdout, version.String())
	if *checkTag {
		return version.CheckReleaseTag(getenv("GITHUB_REF"), version.Version)
	}
	return nil
}
