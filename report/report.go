// Package report assembles the ordered field list sent to a crash collector.
package report

import "github.com/pithecene-io/crashreporter/types"

// Field names understood by the collector.
const (
	KeyProductName                = "ProductName"
	KeyProductID                  = "ProductID"
	KeyVersion                    = "Version"
	KeyGeckoViewVersion           = "GeckoViewVersion"
	KeyAndroidComponentVersion    = "AndroidComponentVersion"
	KeyGleanVersion               = "GleanVersion"
	KeyApplicationServicesVersion = "ApplicationServicesVersion"
	KeyBuildID                    = "BuildID"
	KeyVendor                     = "Vendor"
	KeyReleaseChannel             = "ReleaseChannel"
	KeyProcessName                = "Android_ProcessName"
	KeyPackageName                = "Android_PackageName"
	KeyDevice                     = "Android_Device"
	KeyManufacturer               = "Android_Manufacturer"
	KeyModel                      = "Android_Model"
	KeyBoard                      = "Android_Board"
	KeyBrand                      = "Android_Brand"
	KeyHardware                   = "Android_Hardware"
	KeyOSVersion                  = "Android_Version"
	KeyCrashType                  = "CrashType"
	KeyStackTrace                 = "JavaStackTrace"
	KeyBreadcrumbs                = "Breadcrumbs"

	// MinidumpPart is the form part name of the minidump attachment.
	MinidumpPart = "upload_file_minidump"
)

// InfoPrefix marks the stack trace of a caught exception so the collector
// can tell it apart from a crash.
const InfoPrefix = "[INFO]"

// Field is one form field of a report.
type Field struct {
	Name  string `json:"name" msgpack:"name"`
	Value string `json:"value" msgpack:"value"`
}

// Attachment is a binary form part. Data wins over Path when non-nil;
// otherwise the file at Path is read when the report is encoded.
type Attachment struct {
	Name     string `json:"name" msgpack:"name"`
	Filename string `json:"filename" msgpack:"filename"`
	Path     string `json:"path,omitempty" msgpack:"path,omitempty"`
	Data     []byte `json:"-" msgpack:"data,omitempty"`
}

// Report is an assembled crash report. Field order is preserved on the wire.
type Report struct {
	Type        types.CrashType `json:"crash_type" msgpack:"crash_type"`
	Fields      []Field         `json:"fields" msgpack:"fields"`
	Attachments []Attachment    `json:"attachments,omitempty" msgpack:"attachments,omitempty"`
}

// Get returns the value of the first field named name.
func (r *Report) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Has reports whether a field named name is present.
func (r *Report) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set replaces the value of an existing field in place, or appends a new one.
func (r *Report) Set(name, value string) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Name: name, Value: value})
}

// Names returns the field names in wire order.
func (r *Report) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Attachment returns the attachment with the given part name.
func (r *Report) Attachment(name string) (Attachment, bool) {
	for _, a := range r.Attachments {
		if a.Name == name {
			return a, true
		}
	}
	return Attachment{}, false
}
