// Package types defines the crash descriptors handed to the reporter.
//
//nolint:revive // types is a common Go package naming convention
package types

// Crash is a crash descriptor. Exactly one of NativeCodeCrash,
// UncaughtExceptionCrash or CaughtExceptionCrash; the set is closed.
type Crash interface {
	// Breadcrumbs returns the events recorded before the crash.
	// Never nil.
	Breadcrumbs() []Breadcrumb

	crash()
}

// NativeCodeCrash is a crash of native code that produced a minidump and
// an extras sidecar file.
type NativeCodeCrash struct {
	// MinidumpPath is the path of the minidump file, empty when absent.
	MinidumpPath string `json:"minidump_path,omitempty" msgpack:"minidump_path,omitempty"`
	// MinidumpSuccess reports whether the minidump was written.
	MinidumpSuccess bool `json:"minidump_success" msgpack:"minidump_success"`
	// ExtrasPath is the path of the extras file, empty when absent.
	ExtrasPath string `json:"extras_path,omitempty" msgpack:"extras_path,omitempty"`
	// IsFatal is false for crashes of a child process the application survived.
	IsFatal bool `json:"is_fatal" msgpack:"is_fatal"`
	// Crumbs are the breadcrumbs recorded before the crash.
	Crumbs []Breadcrumb `json:"breadcrumbs" msgpack:"breadcrumbs"`
}

// UncaughtExceptionCrash is an exception that terminated the application.
type UncaughtExceptionCrash struct {
	Throwable Throwable    `json:"throwable" msgpack:"throwable"`
	Crumbs    []Breadcrumb `json:"breadcrumbs" msgpack:"breadcrumbs"`
}

// CaughtExceptionCrash is an exception the application handled and chose
// to report. It is informational, not fatal.
type CaughtExceptionCrash struct {
	Throwable Throwable    `json:"throwable" msgpack:"throwable"`
	Crumbs    []Breadcrumb `json:"breadcrumbs" msgpack:"breadcrumbs"`
}

// HasMinidump reports whether a minidump should be attached.
func (c NativeCodeCrash) HasMinidump() bool {
	return c.MinidumpSuccess && c.MinidumpPath != ""
}

// Breadcrumbs implements Crash.
func (c NativeCodeCrash) Breadcrumbs() []Breadcrumb { return nonNil(c.Crumbs) }

// Breadcrumbs implements Crash.
func (c UncaughtExceptionCrash) Breadcrumbs() []Breadcrumb { return nonNil(c.Crumbs) }

// Breadcrumbs implements Crash.
func (c CaughtExceptionCrash) Breadcrumbs() []Breadcrumb { return nonNil(c.Crumbs) }

func (NativeCodeCrash) crash() {}
func (UncaughtExceptionCrash) crash() {}
func (CaughtExceptionCrash) crash() {}

func nonNil(b []Breadcrumb) []Breadcrumb {
	if b == nil {
		return []Breadcrumb{}
	}
	return b
}

// Verify each variant implements Crash.
var (
	_ Crash = NativeCodeCrash{}
	_ Crash = UncaughtExceptionCrash{}
	_ Crash = CaughtExceptionCrash{}
)
