//go:build opencv

package detector

import (
	"context"
	"encoding/binary"
	"math"

	"gocv.io/x/gocv"

	"github.com/tphakala/iconscan/internal/errors"
)

// OpenCVCorrelator delegates the correlation to OpenCV's TM_CCOEFF_NORMED.
// Scores are post-processed to the same conventions as SpatialCorrelator:
// negatives clipped, flat windows scored 0.
type OpenCVCorrelator struct{}

// DefaultCorrelator returns the OpenCV backed correlator when built with the
// opencv tag.
func DefaultCorrelator(int) Correlator {
	return OpenCVCorrelator{}
}

// Correlate implements Correlator
func (OpenCVCorrelator) Correlate(ctx context.Context, img, tmpl *Plane) (*ScoreMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tmpl.W > img.W || tmpl.H > img.H || tmpl.W == 0 || tmpl.H == 0 {
		return nil, errors.Newf("template %dx%d does not fit image %dx%d", tmpl.W, tmpl.H, img.W, img.H).
			Component("detector").
			Category(errors.CategoryMatching).
			Build()
	}
	if _, energy := centerTemplate(tmpl); energy < minVariance {
		return nil, ErrFlatTemplate
	}

	src, err := planeToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tm, err := planeToMat(tmpl)
	if err != nil {
		return nil, err
	}
	defer tm.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tm, &result, gocv.TmCcoeffNormed, mask)

	out := &ScoreMap{W: img.W - tmpl.W + 1, H: img.H - tmpl.H + 1}
	out.Scores = make([]float32, out.W*out.H)
	sat := img.tables()
	n := float64(tmpl.W * tmpl.H)

	for y := range out.H {
		for x := range out.W {
			sum, sq := sat.window(x, y, tmpl.W, tmpl.H)
			if sq-sum*sum/n < minVariance {
				continue
			}
			out.Scores[y*out.W+x] = float32(clamp01(float64(result.GetFloatAt(y, x))))
		}
	}
	return out, nil
}

func planeToMat(p *Plane) (gocv.Mat, error) {
	buf := make([]byte, 4*len(p.Pix))
	for i, v := range p.Pix {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	m, err := gocv.NewMatFromBytes(p.H, p.W, gocv.MatTypeCV32F, buf)
	if err != nil {
		return gocv.Mat{}, errors.New(err).
			Component("detector").
			Category(errors.CategoryMatching).
			Context("operation", "plane_to_mat").
			Build()
	}
	return m, nil
}
