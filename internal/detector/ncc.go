package detector

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/iconscan/internal/errors"
)

const (
	// minVariance is the smallest window or template energy (sum of squared
	// deviations) treated as textured. Flatter windows score 0.
	minVariance = 1e-3

	// bandRows is the number of output rows computed per work item
	bandRows = 16
)

// ErrFlatTemplate is returned when a template has no intensity variation,
// which leaves the correlation undefined.
var ErrFlatTemplate = errors.NewStd("template has uniform intensity")

// ScoreMap holds one similarity per template offset, row-major, in [0, 1].
type ScoreMap struct {
	W, H   int
	Scores []float32
}

// At returns the score for the template placed at (x, y)
func (m *ScoreMap) At(x, y int) float32 {
	return m.Scores[y*m.W+x]
}

// Correlator computes normalized cross-correlation of a template against
// every offset of an image.
type Correlator interface {
	Correlate(ctx context.Context, img, tmpl *Plane) (*ScoreMap, error)
}

// SpatialCorrelator computes zero-mean normalized cross-correlation directly
// in the spatial domain. Window statistics come from summed-area tables; the
// cross term is accumulated per offset. Output rows are split into bands
// processed by up to Workers goroutines.
type SpatialCorrelator struct {
	Workers int // 0 = GOMAXPROCS
}

// Correlate returns the score map of tmpl over img. Negative correlations are
// clipped to 0. The template must fit inside the image.
func (c SpatialCorrelator) Correlate(ctx context.Context, img, tmpl *Plane) (*ScoreMap, error) {
	if tmpl.W > img.W || tmpl.H > img.H || tmpl.W == 0 || tmpl.H == 0 {
		return nil, errors.Newf("template %dx%d does not fit image %dx%d", tmpl.W, tmpl.H, img.W, img.H).
			Component("detector").
			Category(errors.CategoryMatching).
			Build()
	}

	zeroMean, energy := centerTemplate(tmpl)
	if energy < minVariance {
		return nil, ErrFlatTemplate
	}

	out := &ScoreMap{W: img.W - tmpl.W + 1, H: img.H - tmpl.H + 1}
	out.Scores = make([]float32, out.W*out.H)
	sat := img.tables()
	n := float64(tmpl.W * tmpl.H)

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < out.H; start += bandRows {
		end := min(start+bandRows, out.H)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for y := start; y < end; y++ {
				for x := range out.W {
					sum, sq := sat.window(x, y, tmpl.W, tmpl.H)
					variance := sq - sum*sum/n
					if variance < minVariance {
						continue
					}
					cross := crossTerm(img, zeroMean, tmpl.W, tmpl.H, x, y)
					score := cross / math.Sqrt(variance*energy)
					out.Scores[y*out.W+x] = float32(clamp01(score))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryCancellation).
			Build()
	}

	return out, nil
}

// centerTemplate returns the template with its mean removed and the sum of
// squared deviations.
func centerTemplate(tmpl *Plane) ([]float64, float64) {
	var sum float64
	for _, v := range tmpl.Pix {
		sum += float64(v)
	}
	mean := sum / float64(len(tmpl.Pix))

	zeroMean := make([]float64, len(tmpl.Pix))
	var energy float64
	for i, v := range tmpl.Pix {
		d := float64(v) - mean
		zeroMean[i] = d
		energy += d * d
	}
	return zeroMean, energy
}

// crossTerm is sum(I * T') over the window at (x, y). Because T' has zero
// mean this equals sum((I - mean(I)) * T').
func crossTerm(img *Plane, zeroMean []float64, tw, th, x, y int) float64 {
	var acc float64
	for j := range th {
		row := img.Pix[(y+j)*img.W+x : (y+j)*img.W+x+tw]
		t := zeroMean[j*tw : j*tw+tw]
		for i, v := range row {
			acc += float64(v) * t[i]
		}
	}
	return acc
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// summedAreaTables hold inclusive prefix sums of intensity and squared
// intensity with a zero row and column prepended.
type summedAreaTables struct {
	stride int
	sum    []float64
	sq     []float64
}

func newSummedAreaTables(p *Plane) *summedAreaTables {
	stride := p.W + 1
	t := &summedAreaTables{
		stride: stride,
		sum:    make([]float64, stride*(p.H+1)),
		sq:     make([]float64, stride*(p.H+1)),
	}
	for y := range p.H {
		var rowSum, rowSq float64
		for x := range p.W {
			v := float64(p.Pix[y*p.W+x])
			rowSum += v
			rowSq += v * v
			i := (y+1)*stride + x + 1
			t.sum[i] = t.sum[i-stride] + rowSum
			t.sq[i] = t.sq[i-stride] + rowSq
		}
	}
	return t
}

// window returns the intensity sum and squared sum of the w x h window at (x, y)
func (t *summedAreaTables) window(x, y, w, h int) (sum, sq float64) {
	a := y*t.stride + x
	b := y*t.stride + x + w
	c := (y+h)*t.stride + x
	d := (y+h)*t.stride + x + w
	return t.sum[d] - t.sum[b] - t.sum[c] + t.sum[a], t.sq[d] - t.sq[b] - t.sq[c] + t.sq[a]
}
