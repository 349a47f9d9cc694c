package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/crashreporter/adapter"
	"github.com/pithecene-io/crashreporter/adapter/redis"
	"github.com/pithecene-io/crashreporter/adapter/webhook"
	"github.com/pithecene-io/crashreporter/cli/config"
	"github.com/pithecene-io/crashreporter/log"
	"github.com/pithecene-io/crashreporter/metrics"
	"github.com/pithecene-io/crashreporter/service"
	"github.com/pithecene-io/crashreporter/spool"
	"github.com/pithecene-io/crashreporter/types"
)

// defaultSpoolPath is the fs spool directory when none is configured.
const defaultSpoolPath = ".crashreporter/spool"

// env is the resolved configuration of one command invocation.
type env struct {
	config  *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
}

// loadEnv reads the config file and applies flag overrides to it.
func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(c, cfg)

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := log.NewLogger(log.Context{
		AppName:        cfg.App.Name,
		ProductID:      cfg.App.ID,
		ReleaseChannel: cfg.App.ReleaseChannel,
	}).WithOutput(c.App.ErrWriter)
	logger.SetLevel(level)

	return &env{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewCollector(cfg.App.Name, cfg.App.ReleaseChannel),
	}, nil
}

// applyFlags overwrites config values with every flag set on the command
// line. Flags not defined on the command are ignored.
func applyFlags(c *cli.Context, cfg *config.Config) {
	str := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	str("log-level", &cfg.Log.Level)

	str("app-name", &cfg.App.Name)
	str("app-id", &cfg.App.ID)
	str("app-version", &cfg.App.Version)
	str("build-id", &cfg.App.BuildID)
	str("vendor", &cfg.App.Vendor)
	str("server-url", &cfg.App.ServerURL)
	str("version-name", &cfg.App.VersionName)
	str("release-channel", &cfg.App.ReleaseChannel)
	if c.IsSet("timeout") {
		cfg.Transport.Timeout.Duration = c.Duration("timeout")
	}
	if c.IsSet("breadcrumbs") {
		cfg.App.Breadcrumbs = c.Bool("breadcrumbs")
	}

	str("spool-backend", &cfg.Spool.Backend)
	str("spool-path", &cfg.Spool.Path)
	str("spool-s3-region", &cfg.Spool.Region)

	str("notify-type", &cfg.Notify.Type)
	str("notify-url", &cfg.Notify.URL)
}

// newService builds the reporting service from the resolved config.
// withNotify attaches the configured notifier.
func (e *env) newService(withNotify bool) (*service.Service, error) {
	app := e.config.App
	opts := []service.Option{
		service.WithLogger(e.logger),
		service.WithMetrics(e.metrics),
		service.WithDevice(e.config.Device.Merge(types.HostDevice())),
		service.WithComponentVersions(app.Components),
		service.WithHTTPClientTimeout(e.config.Transport.Timeout.Duration),
		service.WithHeaders(e.config.Transport.Headers),
	}
	if ua := e.config.Transport.UserAgent; ua != "" {
		opts = append(opts, service.WithUserAgent(ua))
	}
	if app.Breadcrumbs {
		opts = append(opts, service.WithBreadcrumbs())
	}
	if withNotify {
		n, err := e.newNotifier()
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithNotifier(n))
	}

	return service.New(service.Config{
		AppName:        app.Name,
		AppID:          app.ID,
		Version:        app.Version,
		BuildID:        app.BuildID,
		Vendor:         app.Vendor,
		ServerURL:      app.ServerURL,
		VersionName:    app.VersionName,
		ReleaseChannel: app.ReleaseChannel,
	}, opts...)
}

// newNotifier builds the configured submission notifier.
func (e *env) newNotifier() (adapter.Adapter, error) {
	n := e.config.Notify
	retries := func(def int) int {
		if n.Retries != nil {
			return *n.Retries
		}
		return def
	}
	switch n.Type {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     n.URL,
			Headers: n.Headers,
			Timeout: n.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     n.URL,
			Channel: n.Channel,
			Stream:  n.Stream,
			Timeout: n.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
	case "":
		return nil, errors.New("--notify requires notify.type (webhook or redis)")
	default:
		return nil, fmt.Errorf("unknown notify type %q (must be webhook or redis)", n.Type)
	}
}

// openSpool opens the configured spool.
func (e *env) openSpool(ctx context.Context) (*spool.Spool, error) {
	s := e.config.Spool
	opts := []spool.Option{spool.WithLogger(e.logger)}
	switch s.Backend {
	case "", "fs":
		path := s.Path
		if path == "" {
			path = defaultSpoolPath
		}
		return spool.NewFS(path, opts...)
	case "s3":
		bucket, prefix := spool.ParseS3Path(s.Path)
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return spool.NewS3(ctx, spool.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.S3PathStyle,
		}, opts...)
	case "memory":
		return spool.NewMemory(opts...)
	default:
		return nil, fmt.Errorf("unknown spool backend %q (must be fs, s3 or memory)", s.Backend)
	}
}

// usageError wraps err as an exit with the usage code.
func usageError(err error) error {
	return cli.Exit(err.Error(), exitUsage)
}
