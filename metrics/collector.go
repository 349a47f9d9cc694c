// Package metrics counts crash report submissions.
//
// The Collector is a leaf package with no internal dependencies; crash
// types are plain strings so the types package is not imported.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Building
	ReportsBuilt       int64            `json:"reports_built"`
	BuiltByType        map[string]int64 `json:"built_by_type"`
	ExtrasMissing      int64            `json:"extras_missing"`
	AttachmentsSent    int64            `json:"attachments_sent"`
	AttachmentsSkipped int64            `json:"attachments_skipped"`

	// Submission
	SubmitAttempts  int64 `json:"submit_attempts"`
	SubmitSucceeded int64 `json:"submit_succeeded"`
	SubmitRejected  int64 `json:"submit_rejected"`
	SubmitNoCrashID int64 `json:"submit_no_crash_id"`
	NetworkErrors   int64 `json:"network_errors"`

	// Spool
	ReportsSpooled int64 `json:"reports_spooled"`
	SpoolFailures  int64 `json:"spool_failures"`

	// Dimensions (informational, set at construction)
	AppName        string `json:"app_name"`
	ReleaseChannel string `json:"release_channel"`
}

// Collector accumulates counters for one reporter instance.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	reportsBuilt       int64
	builtByType        map[string]int64
	extrasMissing      int64
	attachmentsSent    int64
	attachmentsSkipped int64

	submitAttempts  int64
	submitSucceeded int64
	submitRejected  int64
	submitNoCrashID int64
	networkErrors   int64

	reportsSpooled int64
	spoolFailures  int64

	appName        string
	releaseChannel string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(appName, releaseChannel string) *Collector {
	return &Collector{
		builtByType:    make(map[string]int64),
		appName:        appName,
		releaseChannel: releaseChannel,
	}
}

// add increments counter under the lock. Callers check for a nil receiver
// before taking the field address.
func (c *Collector) add(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Building ---

// IncReportBuilt records a report assembled for crashType.
func (c *Collector) IncReportBuilt(crashType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportsBuilt++
	c.builtByType[crashType]++
	c.mu.Unlock()
}

// IncExtrasMissing records a native crash whose extras file yielded nothing.
func (c *Collector) IncExtrasMissing() {
	if c == nil {
		return
	}
	c.add(&c.extrasMissing)
}

// IncAttachmentSent records a binary part written to a request body.
func (c *Collector) IncAttachmentSent() {
	if c == nil {
		return
	}
	c.add(&c.attachmentsSent)
}

// IncAttachmentSkipped records a binary part left out because its file
// could not be read.
func (c *Collector) IncAttachmentSkipped() {
	if c == nil {
		return
	}
	c.add(&c.attachmentsSkipped)
}

// --- Submission ---

// IncSubmitAttempt records a request sent to the collector.
func (c *Collector) IncSubmitAttempt() {
	if c == nil {
		return
	}
	c.add(&c.submitAttempts)
}

// IncSubmitSucceeded records a submission that returned a crash id.
func (c *Collector) IncSubmitSucceeded() {
	if c == nil {
		return
	}
	c.add(&c.submitSucceeded)
}

// IncSubmitRejected records a non-200 collector response.
func (c *Collector) IncSubmitRejected() {
	if c == nil {
		return
	}
	c.add(&c.submitRejected)
}

// IncSubmitNoCrashID records a 200 response without a CrashID line.
func (c *Collector) IncSubmitNoCrashID() {
	if c == nil {
		return
	}
	c.add(&c.submitNoCrashID)
}

// IncNetworkError records a request that never got a response.
func (c *Collector) IncNetworkError() {
	if c == nil {
		return
	}
	c.add(&c.networkErrors)
}

// --- Spool ---

// IncSpooled records a report persisted for a later attempt.
func (c *Collector) IncSpooled() {
	if c == nil {
		return
	}
	c.add(&c.reportsSpooled)
}

// IncSpoolFailure records a failed spool write.
func (c *Collector) IncSpoolFailure() {
	if c == nil {
		return
	}
	c.add(&c.spoolFailures)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{BuiltByType: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.builtByType))
	for k, v := range c.builtByType {
		byType[k] = v
	}

	return Snapshot{
		ReportsBuilt:       c.reportsBuilt,
		BuiltByType:        byType,
		ExtrasMissing:      c.extrasMissing,
		AttachmentsSent:    c.attachmentsSent,
		AttachmentsSkipped: c.attachmentsSkipped,

		SubmitAttempts:  c.submitAttempts,
		SubmitSucceeded: c.submitSucceeded,
		SubmitRejected:  c.submitRejected,
		SubmitNoCrashID: c.submitNoCrashID,
		NetworkErrors:   c.networkErrors,

		ReportsSpooled: c.reportsSpooled,
		SpoolFailures:  c.spoolFailures,

		AppName:        c.appName,
		ReleaseChannel: c.releaseChannel,
	}
}

// Failed returns the number of attempts that produced no crash id.
func (s Snapshot) Failed() int64 {
	return s.SubmitRejected + s.SubmitNoCrashID + s.NetworkErrors
}
