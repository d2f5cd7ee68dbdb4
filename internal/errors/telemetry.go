package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends a scrubbed copy of the error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = sentryLevel(ee.Category)
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// errorTitle builds "Component category operation" for Sentry grouping
func errorTitle(ee *EnhancedError) string {
	parts := []string{ee.Component, string(ee.Category)}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		parts = append(parts, strings.ReplaceAll(op, "_", " "))
	}
	return strings.Join(parts, " ")
}

func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategorySourceUnavailable, CategoryNewsFetch, CategoryNetwork, CategoryMQTTConnect, CategoryMQTTPublish:
		return sentry.LevelWarning
	case CategoryValidation, CategoryBaselineMissing:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu              sync.RWMutex
	globalTelemetryReporter TelemetryReporter
	hasActiveReporting      atomic.Bool
)

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	reporterMu.RLock()
	reporter := globalTelemetryReporter
	reporterMu.RUnlock()

	if reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	userinfoPattern = regexp.MustCompile(`(\w+://)[^/@\s]+@`)
	secretPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|token|password|passwd|secret)[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// ScrubMessage removes query strings, URL credentials and obvious secrets.
func ScrubMessage(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = userinfoPattern.ReplaceAllString(scrubbed, "$1[REDACTED]@")
	for _, p := range secretPatterns {
		scrubbed = p.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}
