package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/cli/render"
	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/report"
	"github.com/pithecene-io/crashreporter/spool"
)

// ResubmitResponse is the response for spool resubmit.
type ResubmitResponse struct {
	SpoolID   string `json:"spool_id" yaml:"spool_id"`
	CrashID   string `json:"crash_id,omitempty" yaml:"crash_id,omitempty"`
	Submitted bool   `json:"submitted" yaml:"submitted"`
}

// SpoolCommand returns the spool command for reports kept by
// submit --spool-on-failure.
func SpoolCommand() *cli.Command {
	flags := append(ConfigFlags(), SpoolFlags()...)
	flags = append(flags, OutputFlags()...)
	return &cli.Command{
		Name:  "spool",
		Usage: "Manage spooled crash reports",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List spooled reports, oldest first",
				Flags:  flags,
				Action: spoolListAction,
			},
			{
				Name:      "resubmit",
				Usage:     "Submit a spooled report and drop it on success",
				ArgsUsage: "<id>",
				Flags:     ServiceFlags(),
				Action:    spoolResubmitAction,
			},
			{
				Name:      "drop",
				Usage:     "Delete a spooled report",
				ArgsUsage: "<id>",
				Flags:     flags,
				Action:    spoolDropAction,
			},
		},
	}
}

func spoolListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}
	e, err := loadEnv(c)
	if err != nil {
		return usageError(err)
	}
	sp, err := e.openSpool(c.Context)
	if err != nil {
		return usageError(err)
	}
	entries, err := sp.List(c.Context)
	if err != nil {
		return err
	}
	return r.Render(entries)
}

func spoolResubmitAction(c *cli.Context) error {
	id, err := spoolID(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}
	e, err := loadEnv(c)
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardErr(e.logger.Sync)

	sp, err := e.openSpool(c.Context)
	if err != nil {
		return usageError(err)
	}
	rec, err := sp.Load(c.Context, id)
	if err != nil {
		return spoolError(err)
	}

	rep := rec.Report()
	if e.config.App.Name == "" {
		e.config.App.Name, _ = rep.Get(report.KeyProductName)
	}
	svc, err := e.newService(c.Bool("notify"))
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardClose(svc)

	crashID, ok := svc.Submit(c.Context, rep)
	if ok {
		if err := sp.Delete(c.Context, id); err != nil {
			e.logger.Warn("submitted report not dropped from spool", map[string]any{
				"spool_id": id,
				"error":    err.Error(),
			})
		}
	}
	if err := r.Render(ResubmitResponse{SpoolID: id, CrashID: crashID, Submitted: ok}); err != nil {
		return err
	}
	if !ok {
		return cli.Exit("", exitNoCrashID)
	}
	return nil
}

func spoolDropAction(c *cli.Context) error {
	id, err := spoolID(c)
	if err != nil {
		return err
	}
	e, err := loadEnv(c)
	if err != nil {
		return usageError(err)
	}
	sp, err := e.openSpool(c.Context)
	if err != nil {
		return usageError(err)
	}
	if err := sp.Delete(c.Context, id); err != nil {
		return spoolError(err)
	}
	return nil
}

func spoolID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(c.Command.Name+" requires exactly one spool id", exitUsage)
	}
	return c.Args().First(), nil
}

func spoolError(err error) error {
	if errors.Is(err, spool.ErrNotFound) {
		return usageError(err)
	}
	return err
}
