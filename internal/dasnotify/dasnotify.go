// Package dasnotify reports errors built by daserr to Sentry, at fatal
// level for fatal categories and at warning level for the rest.
// It implements daserr.TelemetryReporter so daserr can forward freshly
// built errors without importing sentry-go directly.
package dasnotify

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Antcating/das-concat/internal/daserr"
)

const sentryFlushTimeout = 2 * time.Second

// Reporter is a daserr.TelemetryReporter backed by Sentry. The zero value
// is disabled: IsEnabled reports false and ReportError is a no-op.
type Reporter struct {
	enabled bool
}

// Init configures the global Sentry client from dsn and returns a
// Reporter wired to it. An empty dsn yields a disabled Reporter — the
// caller can pass it to daserr.SetTelemetryReporter unconditionally.
func Init(dsn, release string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     dsn,
		Release: release,
	}); err != nil {
		return nil, fmt.Errorf("dasnotify: initializing sentry: %w", err)
	}
	return &Reporter{enabled: true}, nil
}

func (r *Reporter) IsEnabled() bool { return r != nil && r.enabled }

// ReportError forwards ee to Sentry, tagged by component and category and
// leveled by whether spec §7 treats the category as fatal.
func (r *Reporter) ReportError(ee *daserr.EnhancedError) {
	if !r.IsEnabled() || ee.IsReported() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		for k, v := range ee.GetContext() {
			scope.SetContext(k, map[string]any{"value": v})
		}

		level := sentry.LevelWarning
		if ee.Fatal() {
			level = sentry.LevelFatal
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{ee.GetComponent(), ee.GetCategory()})

		sentry.CaptureException(ee)
	})

	ee.MarkReported()
}

// Flush blocks up to sentryFlushTimeout for queued events to reach Sentry;
// call it once before process exit.
func Flush(r *Reporter) {
	if r.IsEnabled() {
		sentry.Flush(sentryFlushTimeout)
	}
}
