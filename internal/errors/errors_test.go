package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildInheritsSentinelCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"invalid image", fmt.Errorf("decode shot.png: %w", ErrInvalidImage), CategoryImageDecode},
		{"empty template set", ErrEmptyTemplateSet, CategoryTemplate},
		{"wrapped enhanced", New(NewStd("boom")).Category(CategoryDatabase).Build(), CategoryDatabase},
		{"plain", NewStd("plain"), CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := New(tt.err).Build()
			assert.Equal(t, tt.want, ee.Category)
		})
	}
}

func TestEnhancedErrorIs(t *testing.T) {
	ee := New(fmt.Errorf("load: %w", ErrInvalidImage)).
		Component("imageutil").
		Context("path", "shot.png").
		Build()

	require.ErrorIs(t, ee, ErrInvalidImage)
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryImageDecode}))
	assert.False(t, Is(ee, &EnhancedError{Category: CategoryDatabase}))
	assert.True(t, IsInputError(ee))
	assert.Equal(t, "shot.png", ee.GetContext()["path"])
}

func TestIsCategory(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(NewStd("missing")).Category(CategoryNotFound).Build())

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsInputError(wrapped))
}

func TestFileContext(t *testing.T) {
	ee := New(NewStd("x")).FileContext("shots/Level.PNG").Build()
	assert.Equal(t, "shots/Level.PNG", ee.Context["file_path"])
	assert.Equal(t, "png", ee.Context["file_extension"])

	ee = New(NewStd("x")).FileContext("README").Build()
	assert.Equal(t, "none", ee.Context["file_extension"])

	assert.Nil(t, New(NewStd("x")).FileContext("").Build().Context)
}

func TestTelemetryReporterReceivesErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("db locked")).Component("datastore").Category(CategoryDatabase).Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "save_image_results").
		Build()

	assert.Equal(t, "Datastore Database Error Save Image Results", generateErrorTitle(ee))
}

func TestScrubMessage(t *testing.T) {
	got := scrubMessage("open /home/alice/shots/a.png via https://ocr.local/run?token=abc password=hunter2")

	assert.NotContains(t, got, "alice")
	assert.NotContains(t, got, "token=abc")
	assert.NotContains(t, got, "hunter2")
	assert.Contains(t, got, "https://ocr.local/run?[REDACTED]")
}
