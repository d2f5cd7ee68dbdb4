// Package telemetry wires opt-in Sentry error reporting.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
)

const flushTimeout = 2 * time.Second

// GetLogger returns the telemetry module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes the Sentry SDK when enabled in settings and
// installs the error reporter so enhanced errors are captured. It returns
// false when telemetry stays disabled.
func InitSentry(settings *conf.Settings, version string) (bool, error) {
	if !settings.Sentry.Enabled {
		errors.SetTelemetryReporter(nil)
		GetLogger().Debug("sentry telemetry is disabled (opt-in required)")
		return false, nil
	}
	if settings.Sentry.DSN == "" {
		return false, errors.Newf("sentry is enabled but no dsn is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return true, initWithOptions(clientOptions(settings.Sentry.DSN, version))
}

func clientOptions(dsn, version string) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("pokerwatch@%s", version),
		BeforeSend:       beforeSend,
	}
}

func initWithOptions(opts sentry.ClientOptions) error {
	if err := sentry.Init(opts); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	GetLogger().Info("sentry telemetry initialized", logger.String("release", opts.Release))
	return nil
}

// Flush waits for buffered events to be delivered.
func Flush() bool {
	return sentry.Flush(flushTimeout)
}

// beforeSend strips host and user identifying data from every event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	event.Message = errors.ScrubMessage(event.Message)
	return event
}
