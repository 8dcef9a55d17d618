// Package metrics provides constants used across metric definitions.
package metrics

// Pipeline stages, used as the operation argument of a Recorder.
const (
	// OpImage is one screenshot processed end to end.
	OpImage = "image"
	// OpDecode is loading and bounding a screenshot.
	OpDecode = "decode"
	// OpMatch is matching and suppression of every template.
	OpMatch = "match"
	// OpOCR is reading one search region.
	OpOCR = "ocr"
	// OpPersist is the per-image database transaction.
	OpPersist = "persist"
	// OpVisualize is rendering the overlay image.
	OpVisualize = "visualize"
	// OpCandidates counts raw candidates before suppression.
	OpCandidates = "candidates"
	// OpDetections counts accepted detections.
	OpDetections = "detections"
	// OpTemplateSkipped counts templates that could not be matched.
	OpTemplateSkipped = "template_skipped"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// OCR outcomes
	StatusValue       = "value"
	StatusNoValue     = "no_value"
	StatusFailed      = "failed"
	StatusEmptyRegion = "empty_region"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms.
	BucketStart10ms = 0.01
	// BucketFactor2 is the common exponential growth factor.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)
