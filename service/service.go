// Package service reports crashes to a Socorro-style collector.
//
// A Report call is one linear attempt: the report is built, sent once, and
// either succeeds with a crash id or fails. Failures are logged and counted,
// never returned; retrying is the caller's concern.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/crashreporter/adapter"
	"github.com/pithecene-io/crashreporter/log"
	"github.com/pithecene-io/crashreporter/metrics"
	"github.com/pithecene-io/crashreporter/report"
	"github.com/pithecene-io/crashreporter/transport"
	"github.com/pithecene-io/crashreporter/types"
)

// Service builds and submits crash reports. It holds no mutable state after
// New and is safe for concurrent use.
type Service struct {
	config    Config
	builder   *report.Builder
	client    *transport.Client
	logger    *log.Logger
	metrics   *metrics.Collector
	notifier  adapter.Adapter
	notifyTTL time.Duration
}

type options struct {
	logger      *log.Logger
	metrics     *metrics.Collector
	device      types.Device
	components  types.ComponentVersions
	timeout     time.Duration
	headers     map[string]string
	userAgent   string
	breadcrumbs bool
	notifier    adapter.Adapter
	extras      report.ExtrasLoader
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithDevice sets the device description sent with every report.
func WithDevice(d types.Device) Option {
	return func(o *options) { o.device = d }
}

// WithComponentVersions sets the bundled component versions.
func WithComponentVersions(v types.ComponentVersions) Option {
	return func(o *options) { o.components = v }
}

// WithHTTPClientTimeout bounds each submission request.
func WithHTTPClientTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeaders adds headers to every submission request.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

// WithUserAgent overrides the User-Agent sent to the collector.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithBreadcrumbs includes breadcrumbs in submitted reports.
func WithBreadcrumbs() Option {
	return func(o *options) { o.breadcrumbs = true }
}

// WithNotifier publishes a SubmissionEvent after every submission attempt.
func WithNotifier(a adapter.Adapter) Option {
	return func(o *options) { o.notifier = a }
}

// WithExtrasLoader replaces the extras file reader.
func WithExtrasLoader(fn report.ExtrasLoader) Option {
	return func(o *options) { o.extras = fn }
}

// defaultNotifyTimeout bounds a notification so it cannot hold up Report.
const defaultNotifyTimeout = 10 * time.Second

// New creates a Service. Empty config fields take their defaults. Returns
// an error for a missing app name or an unusable server URL.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:    log.Nop(),
		userAgent: "crashreporter/" + types.Version,
	}
	for _, opt := range opts {
		opt(&o)
	}

	builderOpts := []report.BuilderOption{
		report.WithLogger(o.logger),
		report.WithMetrics(o.metrics),
	}
	if o.breadcrumbs {
		builderOpts = append(builderOpts, report.WithBreadcrumbs())
	}
	if o.extras != nil {
		builderOpts = append(builderOpts, report.WithExtrasLoader(o.extras))
	}
	builder := report.NewBuilder(report.Metadata{
		ProductName:      cfg.AppName,
		ProductID:        cfg.AppID,
		Version:          cfg.VersionName,
		GeckoViewVersion: cfg.Version,
		BuildID:          cfg.BuildID,
		Vendor:           cfg.Vendor,
		ReleaseChannel:   cfg.ReleaseChannel,
		Components:       o.components,
		Device:           o.device,
	}, builderOpts...)

	client, err := transport.New(transport.Config{
		URL:       cfg.ServerURL,
		Headers:   o.headers,
		Timeout:   o.timeout,
		UserAgent: o.userAgent,
	}, transport.WithLogger(o.logger), transport.WithMetrics(o.metrics))
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	return &Service{
		config:    cfg,
		builder:   builder,
		client:    client,
		logger:    o.logger,
		metrics:   o.metrics,
		notifier:  o.notifier,
		notifyTTL: defaultNotifyTimeout,
	}, nil
}

// Config returns the normalized configuration.
func (s *Service) Config() Config { return s.config }

// Report builds and submits crash. It returns the collector's crash id, or
// ok == false when none was obtained.
func (s *Service) Report(ctx context.Context, crash types.Crash) (string, bool) {
	rep, err := s.Build(crash)
	if err != nil {
		s.logger.Error("crash report not built", map[string]any{"error": err.Error()})
		return "", false
	}
	return s.Submit(ctx, rep)
}

// ReportCaught reports an exception the application handled.
func (s *Service) ReportCaught(ctx context.Context, t types.Throwable, breadcrumbs []types.Breadcrumb) (string, bool) {
	return s.Report(ctx, types.CaughtExceptionCrash{Throwable: t, Crumbs: breadcrumbs})
}

// Build assembles the report for crash without sending it.
func (s *Service) Build(crash types.Crash) (*report.Report, error) {
	rep, err := s.builder.Build(crash)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("crash report built", map[string]any{
		"crash_type":  string(rep.Type),
		"fields":      len(rep.Fields),
		"attachments": len(rep.Attachments),
	})
	return rep, nil
}

// Submit sends a built report once. A nil report is logged and not sent.
func (s *Service) Submit(ctx context.Context, rep *report.Report) (string, bool) {
	if rep == nil {
		s.logger.Error("crash report not sent", map[string]any{"error": "nil report"})
		return "", false
	}
	s.metrics.IncSubmitAttempt()
	id, ok := s.send(ctx, rep)
	s.notify(ctx, rep, id, ok)
	return id, ok
}

func (s *Service) send(ctx context.Context, rep *report.Report) (string, bool) {
	fields := map[string]any{
		"crash_type": string(rep.Type),
		"url":        s.client.URL(),
	}

	resp, err := s.client.Send(ctx, rep)
	var statusErr *transport.StatusError
	switch {
	case errors.As(err, &statusErr):
		s.metrics.IncSubmitRejected()
		fields["status"] = statusErr.Code
		s.logger.Warn("crash report rejected", fields)
		return "", false
	case errors.Is(err, transport.ErrNetwork):
		s.metrics.IncNetworkError()
		fields["error"] = err.Error()
		s.logger.Warn("crash report not sent", fields)
		return "", false
	case err != nil:
		fields["error"] = err.Error()
		s.logger.Error("crash report not encoded", fields)
		return "", false
	}

	id, ok := resp.CrashID()
	if !ok {
		s.metrics.IncSubmitNoCrashID()
		fields["status"] = resp.StatusCode
		s.logger.Warn("collector returned no crash id", fields)
		return "", false
	}

	s.metrics.IncSubmitSucceeded()
	fields["crash_id"] = id
	s.logger.Info("crash report submitted", fields)
	return id, true
}

// notify publishes the submission outcome. Errors are logged only.
func (s *Service) notify(ctx context.Context, rep *report.Report, id string, ok bool) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTTL)
	defer cancel()

	if err := s.notifier.Publish(ctx, s.event(rep, id, ok)); err != nil {
		s.logger.Warn("submission notification failed", map[string]any{"error": err.Error()})
	}
}

func (s *Service) event(rep *report.Report, id string, ok bool) *adapter.SubmissionEvent {
	return &adapter.SubmissionEvent{
		EventType:      adapter.EventSubmitted,
		CrashID:        id,
		CrashType:      string(rep.Type),
		ProductName:    s.config.AppName,
		ProductID:      s.config.AppID,
		Version:        s.config.VersionName,
		ReleaseChannel: s.config.ReleaseChannel,
		Submitted:      ok,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// Close releases the transport and notifier.
func (s *Service) Close() error {
	err := s.client.Close()
	if s.notifier != nil {
		err = errors.Join(err, s.notifier.Close())
	}
	return err
}
