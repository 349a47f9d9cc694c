// Package config loads crashreporter.yaml.
//
// Every value is optional and acts as a default for the matching command
// line flag. Flags always win.
package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/crashreporter/types"
)

// Config represents a crashreporter.yaml file.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Device    types.Device    `yaml:"device"`
	Transport TransportConfig `yaml:"transport"`
	Spool     SpoolConfig     `yaml:"spool"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// AppConfig describes the product being reported on.
type AppConfig struct {
	Name           string `yaml:"name"`
	ID             string `yaml:"id"`
	Version        string `yaml:"version"`
	BuildID        string `yaml:"build_id"`
	Vendor         string `yaml:"vendor"`
	ServerURL      string `yaml:"server_url"`
	VersionName    string `yaml:"version_name"`
	ReleaseChannel string `yaml:"release_channel"`

	Components types.ComponentVersions `yaml:"components"`
	// Breadcrumbs includes breadcrumbs in submitted reports.
	Breadcrumbs bool `yaml:"breadcrumbs"`
}

// TransportConfig holds collector request settings.
type TransportConfig struct {
	Timeout   Duration          `yaml:"timeout"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	UserAgent string            `yaml:"user_agent"`
}

// SpoolConfig selects where unsent reports are kept.
type SpoolConfig struct {
	Backend     string `yaml:"backend"` // fs, s3 or memory
	Path        string `yaml:"path"`    // fs: directory, s3: bucket/prefix
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig configures submission notifications.
type NotifyConfig struct {
	Type    string            `yaml:"type"` // webhook or redis
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Stream  string            `yaml:"stream,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
