package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/types"
)

// NewApp returns the crashreporter CLI. The caller sets ExitErrHandler.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:    "crashreporter",
		Usage:   "Submit crash reports to a Socorro-compatible collector",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Commands: []*cli.Command{
			SubmitCommand(),
			ExtrasCommand(),
			SpoolCommand(),
			VersionCommand(commit),
		},
	}
}
