package detector

import (
	"context"
	"fmt"
	"image"
	"math"
	"slices"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// scaledCacheTTL bounds how long a scaled template plane is reused. The cache
// runs without a janitor goroutine; expired entries are replaced on access.
const scaledCacheTTL = 30 * time.Minute

// MatchStats summarizes one Match call
type MatchStats struct {
	ScalesTried   int
	ScalesSkipped int // scaled template larger than the screenshot
	ScalesFlat    int // tried scales at which the resized template had no contrast
	RawCandidates int // before the candidate cap
	Truncated     bool
	Flat          bool // every tried scale was flat
}

// MatcherConfig configures a Matcher
type MatcherConfig struct {
	BlurSigma     float64
	MaxCandidates int
	Correlator    Correlator // defaults to SpatialCorrelator
	Logger        logger.Logger
}

// Matcher finds raw candidates of one template in one screenshot across a
// fixed, ordered set of scale factors. Scaled template planes are cached by
// fingerprint and scale, so batch runs reuse them across screenshots.
type Matcher struct {
	correlator    Correlator
	blurSigma     float64
	maxCandidates int
	scaled        *cache.Cache
	log           logger.Logger
}

// NewMatcher creates a Matcher
func NewMatcher(cfg MatcherConfig) *Matcher {
	m := &Matcher{
		correlator:    cfg.Correlator,
		blurSigma:     cfg.BlurSigma,
		maxCandidates: cfg.MaxCandidates,
		scaled:        cache.New(scaledCacheTTL, 0),
		log:           cfg.Logger,
	}
	if m.correlator == nil {
		m.correlator = DefaultCorrelator(1)
	}
	if m.log == nil {
		m.log = logger.Global().Module("detector")
	}
	return m
}

// ScreenshotPlane prepares a screenshot for matching with the same
// preprocessing applied to templates.
func (m *Matcher) ScreenshotPlane(img image.Image) *Plane {
	return NewPlane(img, m.blurSigma)
}

// Match returns every offset, at every scale, whose similarity is at least
// ref.Threshold. Candidates are ordered by scale (in the order given), then
// row, then column. Scales at which the template would exceed the screenshot
// are skipped; when every scale is skipped the result is empty, not an error.
func (m *Matcher) Match(ctx context.Context, shot *Plane, ref *Reference, scales []float64) ([]Candidate, MatchStats, error) {
	var stats MatchStats

	if ref == nil || ref.Image == nil || ref.Image.Bounds().Empty() {
		return nil, stats, errors.New(fmt.Errorf("%w: template has no pixels", errors.ErrInvalidImage)).
			Component("detector").
			Category(errors.CategoryImageDecode).
			Build()
	}
	if shot == nil || shot.W == 0 || shot.H == 0 {
		return nil, stats, errors.New(fmt.Errorf("%w: screenshot has no pixels", errors.ErrInvalidImage)).
			Component("detector").
			Category(errors.CategoryImageDecode).
			Build()
	}

	var candidates []Candidate
	for _, scale := range scales {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		w, h := ScaledSize(ref.Image.Bounds().Dx(), ref.Image.Bounds().Dy(), scale)
		if w < 1 || h < 1 || w > shot.W || h > shot.H {
			stats.ScalesSkipped++
			continue
		}
		stats.ScalesTried++

		tmpl := m.scaledPlane(ref, scale, w, h)
		scores, err := m.correlator.Correlate(ctx, shot, tmpl)
		if err != nil {
			if errors.Is(err, ErrFlatTemplate) {
				stats.ScalesFlat++
				m.log.Debug("template has uniform intensity at scale",
					logger.String("template", ref.Name),
					logger.Float64("scale", scale))
				continue
			}
			return nil, stats, err
		}

		for y := range scores.H {
			for x := range scores.W {
				s := scores.At(x, y)
				// compared at the precision the similarity is stored with
				if float64(s) < ref.Threshold {
					continue
				}
				candidates = append(candidates, Candidate{
					TemplateID: ref.ID,
					X:          x,
					Y:          y,
					W:          w,
					H:          h,
					Scale:      scale,
					Similarity: float64(s),
				})
			}
		}
	}

	if stats.ScalesTried > 0 && stats.ScalesFlat == stats.ScalesTried {
		stats.Flat = true
		m.log.Warn("template has uniform intensity, skipping",
			logger.String("template", ref.Name))
	}

	stats.RawCandidates = len(candidates)
	if m.maxCandidates > 0 && len(candidates) > m.maxCandidates {
		// Keep the best scoring ones; the stable sort preserves scan order on ties.
		slices.SortStableFunc(candidates, bySimilarityDesc)
		candidates = candidates[:m.maxCandidates]
		stats.Truncated = true
		m.log.Warn("raw candidate cap reached, keeping best scoring candidates",
			logger.String("template", ref.Name),
			logger.Int("raw_candidates", stats.RawCandidates),
			logger.Int("kept", m.maxCandidates))
	}

	m.log.Debug("template matched",
		logger.String("template", ref.Name),
		logger.Int("scales_tried", stats.ScalesTried),
		logger.Int("scales_skipped", stats.ScalesSkipped),
		logger.Int("candidates", len(candidates)))

	return candidates, stats, nil
}

// ScaledSize returns the template size at the given scale factor
func ScaledSize(w, h int, scale float64) (int, int) {
	return int(math.Round(float64(w) * scale)), int(math.Round(float64(h) * scale))
}

// scaledPlane returns the blurred grayscale template resized to w x h.
// The blur is applied at reference size before resizing.
func (m *Matcher) scaledPlane(ref *Reference, scale float64, w, h int) *Plane {
	key := fmt.Sprintf("%d:%s:%.3f:%.3f", ref.ID, ref.Key, scale, m.blurSigma)
	if cached, ok := m.scaled.Get(key); ok {
		if p, ok := cached.(*Plane); ok {
			return p
		}
	}

	gray := imaging.Grayscale(ref.Image)
	if m.blurSigma > 0 {
		gray = imaging.Blur(gray, m.blurSigma)
	}
	if b := gray.Bounds(); b.Dx() != w || b.Dy() != h {
		filter := imaging.CatmullRom
		if scale < 1 {
			filter = imaging.Box
		}
		gray = imaging.Resize(gray, w, h, filter)
	}

	p := planeFromNRGBA(gray)
	m.scaled.SetDefault(key, p)
	return p
}

func bySimilarityDesc(a, b Candidate) int {
	switch {
	case a.Similarity > b.Similarity:
		return -1
	case a.Similarity < b.Similarity:
		return 1
	default:
		return 0
	}
}
