package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/errors"
)

// mockTransport captures events instead of sending them
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func TestInitDisabled(t *testing.T) {
	flush, err := Init(&conf.Settings{}, Options{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	assert.NotPanics(t, flush)
}

func TestInitReportsEnhancedErrors(t *testing.T) {
	transport := &mockTransport{}
	settings := &conf.Settings{}
	settings.Telemetry.Enabled = true
	settings.Telemetry.DSN = "https://public@example.invalid/1"

	flush, err := Init(settings, Options{Release: "test", Transport: transport})
	require.NoError(t, err)
	t.Cleanup(func() {
		flush()
		errors.SetTelemetryReporter(nil)
	})

	errors.New(errors.NewStd("database locked")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
	flush()

	events := transport.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Contains(t, last.Message, "database locked")
	assert.Equal(t, "datastore", last.Tags["component"])
	assert.Empty(t, last.ServerName)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.ServerName = "gaming-pc"
	event.User = sentry.User{ID: "someone"}
	event.Tags = map[string]string{"hostname": "gaming-pc", "component": "ocr"}
	event.Contexts = map[string]sentry.Context{"os": {"name": "linux"}, "app": {"v": 1}}

	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Tags, "hostname")
	assert.Equal(t, "ocr", out.Tags["component"])
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "app")
}
