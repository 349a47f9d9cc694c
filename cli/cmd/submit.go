package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/cli/render"
	"github.com/pithecene-io/crashreporter/iox"
	"github.com/pithecene-io/crashreporter/report"
	"github.com/pithecene-io/crashreporter/types"
)

// SubmitResponse is the response for the submit commands.
type SubmitResponse struct {
	CrashID   string `json:"crash_id,omitempty" yaml:"crash_id,omitempty"`
	Submitted bool   `json:"submitted" yaml:"submitted"`
	CrashType string `json:"crash_type" yaml:"crash_type"`
	SpoolID   string `json:"spool_id,omitempty" yaml:"spool_id,omitempty"`
}

// SubmitCommand returns the submit command.
//
// Exit codes:
//   - 0: the collector returned a crash id
//   - 1: usage or configuration error
//   - 2: no crash id was obtained
func SubmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a crash report to the collector",
		Subcommands: []*cli.Command{
			submitNativeCommand(),
			submitExceptionCommand(),
		},
	}
}

func submitNativeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "minidump", Usage: "Path to the minidump file"},
		&cli.BoolFlag{Name: "minidump-failed", Usage: "The minidump was not written successfully"},
		&cli.StringFlag{Name: "extras", Usage: "Path to the extras file"},
		&cli.BoolFlag{Name: "fatal", Value: true, Usage: "The crash terminated the main process"},
		&cli.StringSliceFlag{Name: "breadcrumb", Usage: "Breadcrumb message (repeatable)"},
	}
	return &cli.Command{
		Name:  "native",
		Usage: "Submit a native code crash",
		Flags: append(flags, SubmitFlags()...),
		Action: func(c *cli.Context) error {
			path := c.String("minidump")
			return submitCrash(c, types.NativeCodeCrash{
				MinidumpPath:    path,
				MinidumpSuccess: path != "" && !c.Bool("minidump-failed"),
				ExtrasPath:      c.String("extras"),
				IsFatal:         c.Bool("fatal"),
				Crumbs:          breadcrumbs(c.StringSlice("breadcrumb")),
			})
		},
	}
}

func submitExceptionCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "class", Required: true, Usage: "Exception class name"},
		&cli.StringFlag{Name: "message", Usage: "Exception message"},
		&cli.StringSliceFlag{Name: "frame", Usage: `Stack frame "Class.method(File:Line)" (repeatable, innermost first)`},
		&cli.BoolFlag{Name: "caught", Usage: "The application handled the exception"},
		&cli.StringSliceFlag{Name: "breadcrumb", Usage: "Breadcrumb message (repeatable)"},
	}
	return &cli.Command{
		Name:  "exception",
		Usage: "Submit an uncaught or caught exception",
		Flags: append(flags, SubmitFlags()...),
		Action: func(c *cli.Context) error {
			t := types.NewThrowable(c.String("class"), c.String("message"))
			for _, s := range c.StringSlice("frame") {
				f, err := types.ParseStackFrame(s)
				if err != nil {
					return usageError(err)
				}
				t.Frames = append(t.Frames, f)
			}
			crumbs := breadcrumbs(c.StringSlice("breadcrumb"))
			if c.Bool("caught") {
				return submitCrash(c, types.CaughtExceptionCrash{Throwable: t, Crumbs: crumbs})
			}
			return submitCrash(c, types.UncaughtExceptionCrash{Throwable: t, Crumbs: crumbs})
		},
	}
}

func breadcrumbs(messages []string) []types.Breadcrumb {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now().UTC()
	out := make([]types.Breadcrumb, len(messages))
	for i, m := range messages {
		out[i] = types.Breadcrumb{
			Message: m,
			Level:   types.BreadcrumbLevelInfo,
			Type:    types.BreadcrumbTypeDefault,
			Date:    now,
		}
	}
	return out
}

func submitCrash(c *cli.Context, crash types.Crash) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError(err)
	}
	e, err := loadEnv(c)
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardErr(e.logger.Sync)

	svc, err := e.newService(c.Bool("notify"))
	if err != nil {
		return usageError(err)
	}
	defer iox.DiscardClose(svc)

	rep, err := svc.Build(crash)
	if err != nil {
		return usageError(err)
	}

	id, ok := svc.Submit(c.Context, rep)
	resp := SubmitResponse{CrashID: id, Submitted: ok, CrashType: string(rep.Type)}
	if !ok && c.Bool("spool-on-failure") {
		resp.SpoolID = e.spoolReport(c.Context, rep)
	}
	e.logger.Debug("submission metrics", map[string]any{"metrics": e.metrics.Snapshot()})
	if err := r.Render(resp); err != nil {
		return err
	}
	if !ok {
		return cli.Exit("", exitNoCrashID)
	}
	return nil
}

// spoolReport keeps rep for a later resubmit and returns its spool id, or
// "" when it could not be stored.
func (e *env) spoolReport(ctx context.Context, rep *report.Report) string {
	sp, err := e.openSpool(ctx)
	if err != nil {
		e.metrics.IncSpoolFailure()
		e.logger.Error("spool unavailable", map[string]any{"error": err.Error()})
		return ""
	}
	id, err := sp.Save(ctx, rep)
	if err != nil {
		e.metrics.IncSpoolFailure()
		e.logger.Error("report not spooled", map[string]any{"error": err.Error()})
		return ""
	}
	e.metrics.IncSpooled()
	e.logger.Info("report spooled", map[string]any{"spool_id": id})
	return id
}
