// Package errors adds categories, component names and context to errors so
// that callers can classify failures without string matching. It re-exports
// the standard library helpers, so packages import only this one.
//
//	return errors.New(err).
//		Component("datastore").
//		Category(errors.CategoryDatabase).
//		Context("operation", "save_image_results").
//		Build()
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors by how callers react to them
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryImageDecode   ErrorCategory = "image-decode"
	CategoryTemplate      ErrorCategory = "template"
	CategoryMatching      ErrorCategory = "matching"
	CategoryOCR           ErrorCategory = "ocr"
	CategoryDatabase      ErrorCategory = "database"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryNetwork       ErrorCategory = "network"
	CategoryProcessing    ErrorCategory = "processing"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is recorded when Build is called without Component
const ComponentUnknown = "unknown"

// Input errors abort the current image
var (
	// ErrInvalidImage: a screenshot or template could not be decoded into pixels
	ErrInvalidImage = stderrors.New("invalid image")

	// ErrEmptyTemplateSet: detection was requested with no usable templates
	ErrEmptyTemplateSet = stderrors.New("empty template set")
)

// CategorizedError is implemented by errors that know their category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

// EnhancedError is an error with classification metadata
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// ErrorCategory implements CategorizedError
func (ee *EnhancedError) ErrorCategory() ErrorCategory { return ee.Category }

// Is lets errors.Is match by category when target is an *EnhancedError:
// errors.Is(err, &EnhancedError{Category: CategoryDatabase}).
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return false
}

// GetContext returns a copy of the context map
func (ee *EnhancedError) GetContext() map[string]any {
	return maps.Clone(ee.Context)
}

// MarkReported records that a telemetry reporter has sent the error
func (ee *EnhancedError) MarkReported() { ee.reported.Store(true) }

// IsReported reports whether MarkReported was called
func (ee *EnhancedError) IsReported() bool { return ee.reported.Load() }

// ErrorBuilder collects metadata until Build
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an EnhancedError around err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf is New(fmt.Errorf(format, args...))
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext records the path and lower-case extension of the file involved
func (eb *ErrorBuilder) FileContext(path string) *ErrorBuilder {
	if path == "" {
		return eb
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		ext = "none"
	}
	return eb.Context("file_path", path).Context("file_extension", ext)
}

// Build returns the error. Without an explicit category it inherits the
// category of a wrapped error or sentinel. The error is handed to the
// telemetry reporter when one is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	err := eb.err
	if err == nil {
		err = stderrors.New("unknown error")
	}

	ee := &EnhancedError{
		Err:       err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = inheritCategory(err)
	}

	if reportingActive.Load() {
		report(ee)
	}
	return ee
}

func inheritCategory(err error) ErrorCategory {
	var ce CategorizedError
	switch {
	case stderrors.As(err, &ce) && ce.ErrorCategory() != "":
		return ce.ErrorCategory()
	case stderrors.Is(err, ErrInvalidImage):
		return CategoryImageDecode
	case stderrors.Is(err, ErrEmptyTemplateSet):
		return CategoryTemplate
	default:
		return CategoryGeneric
	}
}

// NewStd returns a plain error, like errors.New in the standard library
func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err wraps an EnhancedError of category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound is IsCategory(err, CategoryNotFound)
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsInputError reports whether err should abort processing of an image
// rather than be absorbed.
func IsInputError(err error) bool {
	return Is(err, ErrInvalidImage) || Is(err, ErrEmptyTemplateSet) || IsCategory(err, CategoryImageDecode)
}
