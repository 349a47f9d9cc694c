package types

import (
	"os"
	"path/filepath"
	"runtime"
)

// NotAvailable is the sentinel sent for metadata that has no value.
const NotAvailable = "N/A"

// Device describes the process and host a crash happened on.
// Empty fields are reported as NotAvailable.
type Device struct {
	ProcessName  string `json:"process_name" yaml:"process_name"`
	PackageName  string `json:"package_name" yaml:"package_name"`
	Device       string `json:"device" yaml:"device"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer"`
	Model        string `json:"model,omitempty" yaml:"model"`
	Board        string `json:"board,omitempty" yaml:"board"`
	Brand        string `json:"brand,omitempty" yaml:"brand"`
	Hardware     string `json:"hardware,omitempty" yaml:"hardware"`
	OSVersion    string `json:"os_version,omitempty" yaml:"os_version"`
}

// HostDevice describes the current process and host.
func HostDevice() Device {
	process := filepath.Base(os.Args[0])
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	return Device{
		ProcessName: process,
		PackageName: process,
		Device:      host,
		Hardware:    runtime.GOARCH,
		OSVersion:   runtime.GOOS,
	}
}

// Merge returns d with empty fields filled from fallback.
func (d Device) Merge(fallback Device) Device {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Device{
		ProcessName:  pick(d.ProcessName, fallback.ProcessName),
		PackageName:  pick(d.PackageName, fallback.PackageName),
		Device:       pick(d.Device, fallback.Device),
		Manufacturer: pick(d.Manufacturer, fallback.Manufacturer),
		Model:        pick(d.Model, fallback.Model),
		Board:        pick(d.Board, fallback.Board),
		Brand:        pick(d.Brand, fallback.Brand),
		Hardware:     pick(d.Hardware, fallback.Hardware),
		OSVersion:    pick(d.OSVersion, fallback.OSVersion),
	}
}

// ComponentVersions carries the versions of bundled libraries reported
// alongside the application version. Empty fields are reported as
// NotAvailable.
type ComponentVersions struct {
	AndroidComponents   string `json:"android_components,omitempty" yaml:"android_components"`
	Glean               string `json:"glean,omitempty" yaml:"glean"`
	ApplicationServices string `json:"application_services,omitempty" yaml:"application_services"`
}
