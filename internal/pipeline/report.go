package pipeline

import (
	"time"

	"github.com/tphakala/iconscan/internal/datastore"
)

// ImageReport summarizes the processing of one screenshot
type ImageReport struct {
	Path             string
	Width, Height    int     // source dimensions
	Factor           float64 // processed to source coordinate factor
	TemplatesMatched int
	TemplatesSkipped int // too large at every scale, flat or unmatchable
	RawCandidates    int
	Detections       []datastore.Detection // persisted rows, in template order
	OCRFailures      int
	EmptyRegions     int
	WithoutValue     int
	OverlayPath      string
	Duration         time.Duration
	Err              error
}

// Persisted returns the number of stored detection rows
func (r *ImageReport) Persisted() int {
	return len(r.Detections)
}

// Failed reports whether the image aborted
func (r *ImageReport) Failed() bool {
	return r.Err != nil
}

// BatchReport summarizes a batch run
type BatchReport struct {
	RunID    string
	Images   []*ImageReport
	Duration time.Duration
}

// Processed returns how many images completed
func (b *BatchReport) Processed() int {
	n := 0
	for _, r := range b.Images {
		if !r.Failed() {
			n++
		}
	}
	return n
}

// Failed returns how many images aborted
func (b *BatchReport) Failed() int {
	return len(b.Images) - b.Processed()
}

// Detections returns the number of persisted detections across the batch
func (b *BatchReport) Detections() int {
	n := 0
	for _, r := range b.Images {
		n += r.Persisted()
	}
	return n
}
