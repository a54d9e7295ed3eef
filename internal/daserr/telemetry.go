package daserr

import "sync/atomic"

// TelemetryReporter is an interface for reporting errors to an out-of-band
// notifier, implemented by internal/dasnotify without daserr importing it
// directly (avoids a dependency cycle between error construction and the
// telemetry client).
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	globalTelemetryReporter TelemetryReporter
	hasActiveReporting      atomic.Bool
)

// SetTelemetryReporter installs the global reporter. Called once from
// cmd/dasconcat after dasnotify.Init().
func SetTelemetryReporter(reporter TelemetryReporter) {
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// reportToTelemetry forwards a freshly built error to the reporter, unless
// it has already been reported once.
func reportToTelemetry(ee *EnhancedError) {
	if globalTelemetryReporter == nil || !globalTelemetryReporter.IsEnabled() {
		return
	}
	if ee.IsReported() {
		return
	}
	globalTelemetryReporter.ReportError(ee)
	ee.MarkReported()
}
