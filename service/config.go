package service

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/pithecene-io/crashreporter/types"
)

// Defaults applied to empty Config fields.
const (
	DefaultAppID          = "{eeb82917-e434-4870-8148-5c03d4caa81b}"
	DefaultVendor         = "Mozilla"
	DefaultReleaseChannel = "nightly"
	DefaultServerBase     = "https://crash-reports.mozilla.com/submit"
)

// Config describes the product a Service reports for. Field order is the
// order NewConfig consumes positional arguments in.
type Config struct {
	// AppName is sent as ProductName (required).
	AppName string
	// AppID is sent as ProductID.
	AppID string
	// Version is the engine version, sent as GeckoViewVersion.
	Version string
	// BuildID is sent as BuildID.
	BuildID string
	// Vendor is sent as Vendor.
	Vendor string
	// ServerURL is the collector submit endpoint.
	ServerURL string
	// VersionName is the application version, sent as Version.
	VersionName string
	// ReleaseChannel is sent as ReleaseChannel.
	ReleaseChannel string
}

// NewConfig builds a Config from positional values in field order: app
// name, app id, version, build id, vendor, server URL, version name,
// release channel. Missing or empty values take their defaults.
func NewConfig(appName string, args ...string) (Config, error) {
	cfg := Config{AppName: appName}
	fields := []*string{
		&cfg.AppID, &cfg.Version, &cfg.BuildID, &cfg.Vendor,
		&cfg.ServerURL, &cfg.VersionName, &cfg.ReleaseChannel,
	}
	if len(args) > len(fields) {
		return Config{}, fmt.Errorf("service: at most %d positional values after the app name, got %d", len(fields), len(args))
	}
	for i, v := range args {
		*fields[i] = v
	}
	return cfg.withDefaults(), nil
}

// withDefaults returns a copy of c with empty fields filled in.
func (c Config) withDefaults() Config {
	if c.AppID == "" {
		c.AppID = DefaultAppID
	}
	if c.Version == "" {
		c.Version = types.NotAvailable
	}
	if c.BuildID == "" {
		c.BuildID = types.NotAvailable
	}
	if c.Vendor == "" {
		c.Vendor = DefaultVendor
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL(c.AppID, c.Version, c.BuildID)
	}
	if c.VersionName == "" {
		c.VersionName = types.NotAvailable
	}
	if c.ReleaseChannel == "" {
		c.ReleaseChannel = DefaultReleaseChannel
	}
	return c
}

// Validate reports a missing app name or an unusable server URL.
func (c Config) Validate() error {
	if c.AppName == "" {
		return errors.New("service: app name is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("service: server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service: server URL %q must be http or https", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("service: server URL %q has no host", c.ServerURL)
	}
	return nil
}

// DefaultServerURL returns the public collector endpoint for a product.
func DefaultServerURL(appID, version, buildID string) string {
	return fmt.Sprintf("%s?id=%s&version=%s&buildid=%s", DefaultServerBase,
		url.QueryEscape(appID), url.QueryEscape(version), url.QueryEscape(buildID))
}
