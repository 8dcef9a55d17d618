//go:build !opencv

package detector

// DefaultCorrelator returns the pure Go correlator using up to workers
// goroutines per template.
func DefaultCorrelator(workers int) Correlator {
	return SpatialCorrelator{Workers: workers}
}
