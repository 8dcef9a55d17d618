package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives every built EnhancedError while enabled
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu      sync.RWMutex
	reporter        TelemetryReporter
	reportingActive atomic.Bool
)

// SetTelemetryReporter installs the reporter; nil turns reporting off
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reportingActive.Store(r != nil && r.IsEnabled())
}

func report(ee *EnhancedError) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter sends errors to Sentry as events grouped by component,
// category and operation. Messages and string context are scrubbed first.
type SentryReporter struct {
	enabled bool
}

func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	title := generateErrorTitle(ee)
	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err))
	level := sentry.LevelError
	switch ee.Category {
	case CategoryNetwork, CategoryOCR, CategoryFileIO, CategoryTimeout:
		level = sentry.LevelWarning
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.Context {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

var categoryTitles = map[ErrorCategory]string{
	CategoryValidation:    "Validation Error",
	CategoryConfiguration: "Configuration Error",
	CategoryFileIO:        "File I/O Error",
	CategoryImageDecode:   "Image Decode Error",
	CategoryTemplate:      "Template Error",
	CategoryMatching:      "Matching Error",
	CategoryOCR:           "OCR Error",
	CategoryDatabase:      "Database Error",
	CategoryNetwork:       "Network Error",
}

// generateErrorTitle returns e.g. "Datastore Database Error Save Image Results"
func generateErrorTitle(ee *EnhancedError) string {
	var words []string
	if ee.Component != "" && ee.Component != ComponentUnknown {
		words = append(words, capitalize(ee.Component))
	}
	if t, ok := categoryTitles[ee.Category]; ok {
		words = append(words, t)
	} else {
		words = append(words, string(ee.Category))
	}
	if op, ok := ee.Context["operation"].(string); ok {
		for w := range strings.FieldsFuncSeq(op, func(r rune) bool { return r == '_' || r == ' ' || r == '-' }) {
			words = append(words, capitalize(w))
		}
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var scrubbers = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(https?://[^?\s]+)\?\S*`), "$1?[REDACTED]"},
	{regexp.MustCompile(`(/home|/Users)/[^/\s]+`), "$1/[USER]"},
	{regexp.MustCompile(`(?i)(password|token|dsn|api[_-]?key)[=:]\S+`), "$1=[REDACTED]"},
}

// scrubMessage removes URL query strings, user names in home paths and
// inline credentials
func scrubMessage(message string) string {
	for _, s := range scrubbers {
		message = s.re.ReplaceAllString(message, s.repl)
	}
	return message
}
