// Package telemetry sets up optional error reporting to Sentry. Reporting is
// off unless enabled in the configuration together with a DSN.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// FlushTimeout bounds how long pending events are sent on shutdown
const FlushTimeout = 2 * time.Second

var sentryInitialized atomic.Bool

// Options tune Sentry initialization. Transport is only set by tests.
type Options struct {
	Release   string
	Transport sentry.Transport
}

// Init initializes Sentry and installs the error reporter when telemetry is
// enabled. The returned function flushes pending events and must be called
// on exit; it is a no-op when telemetry is disabled.
func Init(settings *conf.Settings, opts Options) (func(), error) {
	if !settings.Telemetry.Enabled {
		return func() {}, nil
	}

	release := opts.Release
	if release == "" {
		release = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.DSN,
		Transport:        opts.Transport,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("iconscan@%s", release),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return func() {}, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentryInitialized.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logger.Global().Module("telemetry").Info("error reporting enabled",
		logger.String("release", release))

	return Flush, nil
}

// Flush sends pending events
func Flush() {
	if sentryInitialized.Load() {
		sentry.Flush(FlushTimeout)
	}
}

// applyPrivacyFilters strips host identity and redacts secrets from the
// message before an event leaves the process.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = logger.RedactSensitiveData(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = logger.RedactSensitiveData(event.Exception[i].Value)
	}
	return event
}
