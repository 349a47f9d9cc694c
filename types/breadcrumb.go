package types

import "time"

// BreadcrumbLevel is the severity of a breadcrumb.
type BreadcrumbLevel string

// Breadcrumb levels.
const (
	BreadcrumbLevelDebug    BreadcrumbLevel = "debug"
	BreadcrumbLevelInfo     BreadcrumbLevel = "info"
	BreadcrumbLevelWarning  BreadcrumbLevel = "warning"
	BreadcrumbLevelError    BreadcrumbLevel = "error"
	BreadcrumbLevelCritical BreadcrumbLevel = "critical"
)

// BreadcrumbType classifies what a breadcrumb records.
type BreadcrumbType string

// Breadcrumb types.
const (
	BreadcrumbTypeDefault    BreadcrumbType = "default"
	BreadcrumbTypeNavigation BreadcrumbType = "navigation"
	BreadcrumbTypeHTTP       BreadcrumbType = "http"
	BreadcrumbTypeUser       BreadcrumbType = "user"
)

// Breadcrumb is an event logged before a crash. Carried for diagnostic
// context; the collector does not require it.
type Breadcrumb struct {
	Message  string            `json:"message" msgpack:"message"`
	Category string            `json:"category,omitempty" msgpack:"category,omitempty"`
	Level    BreadcrumbLevel   `json:"level,omitempty" msgpack:"level,omitempty"`
	Type     BreadcrumbType    `json:"type,omitempty" msgpack:"type,omitempty"`
	Data     map[string]string `json:"data,omitempty" msgpack:"data,omitempty"`
	Date     time.Time         `json:"date" msgpack:"date"`
}
