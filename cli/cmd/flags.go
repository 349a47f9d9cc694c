// Package cmd provides the commands of the crashreporter binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes.
const (
	exitOK        = 0
	exitUsage     = 1
	exitNoCrashID = 2
)

// Output flags shared by every command.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// OutputFlags returns the flags every command renders with.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

// ConfigFlags returns the config file and logging flags.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to crashreporter.yaml (default: ./crashreporter.yaml when present)",
			EnvVars: []string{"CRASHREPORTER_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// AppFlags returns the flags describing the product and collector. Each
// overrides the matching app.* config value.
func AppFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "app-name", Usage: "Application name, sent as ProductName"},
		&cli.StringFlag{Name: "app-id", Usage: "Application id, sent as ProductID"},
		&cli.StringFlag{Name: "app-version", Usage: "Engine version, sent as GeckoViewVersion"},
		&cli.StringFlag{Name: "build-id", Usage: "Build id"},
		&cli.StringFlag{Name: "vendor", Usage: "Vendor name"},
		&cli.StringFlag{Name: "server-url", Usage: "Collector submit URL", EnvVars: []string{"CRASHREPORTER_SERVER_URL"}},
		&cli.StringFlag{Name: "version-name", Usage: "Application version, sent as Version"},
		&cli.StringFlag{Name: "release-channel", Usage: "Release channel"},
		&cli.DurationFlag{Name: "timeout", Usage: "Collector request timeout"},
		&cli.BoolFlag{Name: "breadcrumbs", Usage: "Send breadcrumbs with the report"},
	}
}

// SpoolFlags returns the flags selecting the spool backend.
func SpoolFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "spool-backend", Usage: "Spool backend: fs, s3 or memory"},
		&cli.StringFlag{Name: "spool-path", Usage: "Spool location (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "spool-s3-region", Usage: "AWS region for the s3 spool backend"},
	}
}

// NotifyFlags returns the submission notification flags.
func NotifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "notify", Usage: "Publish a crash_submitted event after submitting"},
		&cli.StringFlag{Name: "notify-type", Usage: "Notifier: webhook or redis"},
		&cli.StringFlag{Name: "notify-url", Usage: "Webhook or Redis URL"},
	}
}

// SubmitFlags returns the flags common to the submit subcommands.
func SubmitFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{Name: "spool-on-failure", Usage: "Keep the report in the spool when no crash id is returned"},
	}, ServiceFlags()...)
}

// ServiceFlags returns every flag needed to build the reporting service
// and reach the spool.
func ServiceFlags() []cli.Flag {
	flags := ConfigFlags()
	flags = append(flags, AppFlags()...)
	flags = append(flags, SpoolFlags()...)
	flags = append(flags, NotifyFlags()...)
	flags = append(flags, OutputFlags()...)
	return flags
}
