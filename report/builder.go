package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/pithecene-io/crashreporter/extras"
	"github.com/pithecene-io/crashreporter/log"
	"github.com/pithecene-io/crashreporter/metrics"
	"github.com/pithecene-io/crashreporter/types"
)

// ErrUnknownCrash is returned for a nil or unrecognized crash descriptor.
var ErrUnknownCrash = errors.New("report: unknown crash descriptor")

// Metadata is the static product description included in every report.
// Empty values are sent as types.NotAvailable.
type Metadata struct {
	ProductName      string
	ProductID        string
	Version          string
	GeckoViewVersion string
	BuildID          string
	Vendor           string
	ReleaseChannel   string
	Components       types.ComponentVersions
	Device           types.Device
}

// ExtrasLoader reads an extras file. It must return a usable (possibly
// empty) map even when it also returns an error.
type ExtrasLoader func(path string) (extras.Map, error)

// Builder turns crash descriptors into reports. It holds no per-report
// state and is safe for concurrent use.
type Builder struct {
	meta        Metadata
	breadcrumbs bool
	loadExtras  ExtrasLoader
	logger      *log.Logger
	metrics     *metrics.Collector
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBreadcrumbs adds a Breadcrumbs field holding the crash's breadcrumbs
// as a JSON array when there are any.
func WithBreadcrumbs() BuilderOption {
	return func(b *Builder) { b.breadcrumbs = true }
}

// WithExtrasLoader replaces extras.Load.
func WithExtrasLoader(fn ExtrasLoader) BuilderOption {
	return func(b *Builder) { b.loadExtras = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder creates a Builder for the given product metadata.
func NewBuilder(meta Metadata, opts ...BuilderOption) *Builder {
	b := &Builder{
		meta:       meta,
		loadExtras: extras.Load,
		logger:     log.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the report for crash.
func (b *Builder) Build(crash types.Crash) (*Report, error) {
	crash = deref(crash)
	crashType := types.TypeOf(crash)
	if !crashType.Valid() {
		return nil, fmt.Errorf("%w: %T", ErrUnknownCrash, crash)
	}

	r := &Report{Type: crashType, Fields: b.staticFields(crashType)}

	switch c := crash.(type) {
	case types.UncaughtExceptionCrash:
		b.addStackTrace(r, c.Throwable, false)
	case types.CaughtExceptionCrash:
		b.addStackTrace(r, c.Throwable, true)
	}

	if b.breadcrumbs {
		if err := addBreadcrumbs(r, crash.Breadcrumbs()); err != nil {
			b.logger.Warn("breadcrumbs not encoded", map[string]any{"error": err.Error()})
		}
	}

	if native, ok := crash.(types.NativeCodeCrash); ok {
		if native.ExtrasPath != "" {
			b.mergeExtras(r, native.ExtrasPath)
		}
		if native.HasMinidump() {
			r.Attachments = append(r.Attachments, Attachment{
				Name:     MinidumpPart,
				Filename: filepath.Base(native.MinidumpPath),
				Path:     native.MinidumpPath,
			})
		}
	}

	b.metrics.IncReportBuilt(string(crashType))
	return r, nil
}

func (b *Builder) staticFields(crashType types.CrashType) []Field {
	m := b.meta
	return []Field{
		{KeyProductName, orNA(m.ProductName)},
		{KeyProductID, orNA(m.ProductID)},
		{KeyVersion, orNA(m.Version)},
		{KeyGeckoViewVersion, orNA(m.GeckoViewVersion)},
		{KeyAndroidComponentVersion, orNA(m.Components.AndroidComponents)},
		{KeyGleanVersion, orNA(m.Components.Glean)},
		{KeyApplicationServicesVersion, orNA(m.Components.ApplicationServices)},
		{KeyBuildID, orNA(m.BuildID)},
		{KeyVendor, orNA(m.Vendor)},
		{KeyReleaseChannel, orNA(m.ReleaseChannel)},
		{KeyProcessName, orNA(m.Device.ProcessName)},
		{KeyPackageName, orNA(m.Device.PackageName)},
		{KeyDevice, orNA(m.Device.Device)},
		{KeyManufacturer, orNA(m.Device.Manufacturer)},
		{KeyModel, orNA(m.Device.Model)},
		{KeyBoard, orNA(m.Device.Board)},
		{KeyBrand, orNA(m.Device.Brand)},
		{KeyHardware, orNA(m.Device.Hardware)},
		{KeyOSVersion, orNA(m.Device.OSVersion)},
		{KeyCrashType, string(crashType)},
	}
}

// addStackTrace adds the stack trace field unless no frame was captured.
func (b *Builder) addStackTrace(r *Report, t types.Throwable, caught bool) {
	if !t.HasFrames() {
		return
	}
	trace := t.StackTrace()
	if caught {
		trace = InfoPrefix + " " + trace
	}
	r.Set(KeyStackTrace, trace)
}

func addBreadcrumbs(r *Report, crumbs []types.Breadcrumb) error {
	if len(crumbs) == 0 {
		return nil
	}
	data, err := json.Marshal(crumbs)
	if err != nil {
		return err
	}
	r.Set(KeyBreadcrumbs, string(data))
	return nil
}

// mergeExtras copies the extras file entries into r in key order. A key
// that collides with an earlier field overwrites it in place.
func (b *Builder) mergeExtras(r *Report, path string) {
	m, err := b.loadExtras(path)
	if err != nil {
		b.metrics.IncExtrasMissing()
		b.logger.Debug("extras not loaded", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, m[k])
	}
}

// deref turns pointer variants into values so callers may pass either.
func deref(c types.Crash) types.Crash {
	switch v := c.(type) {
	case *types.NativeCodeCrash:
		if v != nil {
			return *v
		}
	case *types.UncaughtExceptionCrash:
		if v != nil {
			return *v
		}
	case *types.CaughtExceptionCrash:
		if v != nil {
			return *v
		}
	default:
		return c
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return types.NotAvailable
	}
	return s
}
