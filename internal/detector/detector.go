package detector

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// Config controls a Detector
type Config struct {
	Scales        []float64
	Overlap       float64
	Workers       int // templates matched concurrently, 0 = GOMAXPROCS, 1 = sequential
	BlurSigma     float64
	MaxCandidates int
	Correlator    Correlator
	Logger        logger.Logger
}

// TemplateResult is the outcome of matching one template against a screenshot
type TemplateResult struct {
	Reference  *Reference
	Detections []Candidate // after suppression, highest similarity first
	Stats      MatchStats
	Skipped    bool // too large at every scale, flat or unreadable
}

// Result holds the detections of every template for one screenshot, in
// template order.
type Result struct {
	Templates     []TemplateResult
	RawCandidates int
	Duration      time.Duration
}

// Detections returns every accepted detection, grouped by template in
// template order.
func (r *Result) Detections() []Candidate {
	var out []Candidate
	for i := range r.Templates {
		out = append(out, r.Templates[i].Detections...)
	}
	return out
}

// Skipped returns how many templates produced no candidates because they
// could not be matched
func (r *Result) Skipped() int {
	n := 0
	for i := range r.Templates {
		if r.Templates[i].Skipped {
			n++
		}
	}
	return n
}

// Detector runs the Matcher and Suppressor for every template
type Detector struct {
	matcher *Matcher
	scales  []float64
	overlap float64
	workers int
	log     logger.Logger
}

// New creates a Detector
func New(cfg Config) *Detector {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("detector")
	}
	scales := cfg.Scales
	if len(scales) == 0 {
		scales = []float64{1.0}
	}
	overlap := cfg.Overlap
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	correlator := cfg.Correlator
	if correlator == nil {
		correlator = DefaultCorrelator(bandWorkers(workers))
	}

	return &Detector{
		matcher: NewMatcher(MatcherConfig{
			BlurSigma:     cfg.BlurSigma,
			MaxCandidates: cfg.MaxCandidates,
			Correlator:    correlator,
			Logger:        log,
		}),
		scales:  scales,
		overlap: overlap,
		workers: workers,
		log:     log,
	}
}

// bandWorkers splits GOMAXPROCS between the templates matched concurrently,
// so a correlation never runs more than about GOMAXPROCS goroutines in total.
// A sequential detector correlates sequentially too.
func bandWorkers(templateWorkers int) int {
	if templateWorkers <= 1 {
		return 1
	}
	return max(1, runtime.GOMAXPROCS(0)/templateWorkers)
}

// Workers returns the number of templates matched concurrently
func (d *Detector) Workers() int {
	return d.workers
}

// Matcher exposes the underlying matcher
func (d *Detector) Matcher() *Matcher {
	return d.matcher
}

// Detect matches every reference against the screenshot plane. Each worker
// writes only the slot of the template it owns, so results are identical to
// a sequential run. A template that cannot be matched is reported as skipped;
// only an empty reference set or cancellation fails the call.
func (d *Detector) Detect(ctx context.Context, shot *Plane, refs []*Reference) (*Result, error) {
	if len(refs) == 0 {
		return nil, errors.New(errors.ErrEmptyTemplateSet).
			Component("detector").
			Category(errors.CategoryTemplate).
			Build()
	}
	if shot == nil || shot.W == 0 || shot.H == 0 {
		return nil, errors.Newf("%w: screenshot has no pixels", errors.ErrInvalidImage).
			Component("detector").
			Category(errors.CategoryImageDecode).
			Build()
	}

	start := time.Now()
	result := &Result{Templates: make([]TemplateResult, len(refs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, ref := range refs {
		g.Go(func() error {
			result.Templates[i] = d.detectOne(gctx, shot, ref)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryCancellation).
			Build()
	}

	for i := range result.Templates {
		result.RawCandidates += result.Templates[i].Stats.RawCandidates
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (d *Detector) detectOne(ctx context.Context, shot *Plane, ref *Reference) TemplateResult {
	tr := TemplateResult{Reference: ref}

	candidates, stats, err := d.matcher.Match(ctx, shot, ref, d.scales)
	tr.Stats = stats
	if err != nil {
		if ctx.Err() == nil {
			d.log.Warn("template match failed, skipping",
				logger.String("template", ref.Name),
				logger.Error(err))
		}
		tr.Skipped = true
		return tr
	}
	if stats.Flat || stats.ScalesTried == 0 {
		tr.Skipped = true
		return tr
	}

	tr.Detections = Suppress(candidates, d.overlap)
	return tr
}
