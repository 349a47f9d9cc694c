package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/cli/render"
	"github.com/pithecene-io/crashreporter/extras"
)

// ExtrasResponse is the response for the extras command.
type ExtrasResponse struct {
	Path    string     `json:"path" yaml:"path"`
	Format  string     `json:"format" yaml:"format"`
	Count   int        `json:"count" yaml:"count"`
	Entries extras.Map `json:"entries" yaml:"entries"`
}

// ExtrasCommand returns the extras command, which prints the key/value
// pairs an extras file contributes to a native crash report.
func ExtrasCommand() *cli.Command {
	return &cli.Command{
		Name:      "extras",
		Usage:     "Parse an extras file and print its entries",
		ArgsUsage: "<file>",
		Flags:     OutputFlags(),
		Action:    extrasAction,
	}
}

func extrasAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("extras requires exactly one file argument", exitUsage)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}

	path := c.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return usageError(err)
	}
	m, format := extras.ParseWithFormat(data)

	if r.Format() == render.FormatTable {
		return r.Render(m)
	}
	return r.Render(ExtrasResponse{
		Path:    path,
		Format:  string(format),
		Count:   len(m),
		Entries: m,
	})
}
