package detector

import (
	"context"
	"image"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/testutil"
)

var defaultScales = []float64{0.8, 0.9, 1.0, 1.1, 1.2}

// twoIconScreenshot pastes icon at (20, 30) at full size and at (200, 120)
// scaled by 0.9.
func twoIconScreenshot(icon image.Image) *image.NRGBA {
	shot := testutil.Canvas(320, 200)
	testutil.Paste(shot, icon, 20, 30)
	testutil.Paste(shot, testutil.Scaled(icon, 0.9), 200, 120)
	return shot
}

func newTestDetector(cfg Config) *Detector {
	if cfg.Scales == nil {
		cfg.Scales = defaultScales
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	return New(cfg)
}

func TestSpatialCorrelatorExactMatch(t *testing.T) {
	icon := testutil.BlockIcon(1, 16, 4)
	shot := testutil.Canvas(64, 48)
	testutil.Paste(shot, icon, 30, 12)

	scores, err := SpatialCorrelator{Workers: 2}.Correlate(context.Background(), NewPlane(shot, 0), NewPlane(icon, 0))
	require.NoError(t, err)

	assert.Equal(t, 64-16+1, scores.W)
	assert.Equal(t, 48-16+1, scores.H)
	assert.InDelta(t, 1.0, scores.At(30, 12), 1e-4)
	// fully inside the flat background
	assert.Zero(t, scores.At(0, 0))

	for _, s := range scores.Scores {
		assert.GreaterOrEqual(t, s, float32(0))
		assert.LessOrEqual(t, s, float32(1))
	}
}

func TestSpatialCorrelatorClipsNegativeCorrelation(t *testing.T) {
	icon := testutil.BlockIcon(2, 16, 4)
	inverted := imaging.Invert(icon)
	shot := testutil.Canvas(48, 48)
	testutil.Paste(shot, icon, 8, 8)

	scores, err := SpatialCorrelator{}.Correlate(context.Background(), NewPlane(shot, 0), NewPlane(inverted, 0))
	require.NoError(t, err)
	assert.Zero(t, scores.At(8, 8))
}

func TestSpatialCorrelatorFlatTemplate(t *testing.T) {
	flat := testutil.Canvas(8, 8)
	shot := testutil.Canvas(32, 32)

	_, err := SpatialCorrelator{}.Correlate(context.Background(), NewPlane(shot, 0), NewPlane(flat, 0))
	require.ErrorIs(t, err, ErrFlatTemplate)
}

func TestSpatialCorrelatorTemplateTooLarge(t *testing.T) {
	_, err := SpatialCorrelator{}.Correlate(context.Background(),
		NewPlane(testutil.Canvas(8, 8), 0), NewPlane(testutil.BlockIcon(3, 16, 4), 0))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMatching))
}

func TestMatcherSkipsScalesLargerThanScreenshot(t *testing.T) {
	icon := testutil.BlockIcon(4, 20, 4)
	shot := testutil.Canvas(21, 21)
	testutil.Paste(shot, icon, 0, 0)

	m := NewMatcher(MatcherConfig{})
	ref := &Reference{ID: 1, Key: "k", Name: "icon", Image: icon, Threshold: 0.8}

	candidates, stats, err := m.Match(context.Background(), m.ScreenshotPlane(shot), ref, defaultScales)
	require.NoError(t, err)
	// 1.1 and 1.2 produce 22 and 24 pixel templates
	assert.Equal(t, 2, stats.ScalesSkipped)
	assert.Equal(t, 3, stats.ScalesTried)
	require.NotEmpty(t, candidates)
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i-1].Scale, candidates[i].Scale, "candidates are ordered by scale")
	}
}

func TestMatcherAllScalesTooLarge(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	ref := &Reference{ID: 1, Key: "k", Name: "big", Image: testutil.BlockIcon(5, 40, 4), Threshold: 0.8}

	candidates, stats, err := m.Match(context.Background(), m.ScreenshotPlane(testutil.Canvas(30, 30)), ref, defaultScales)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, len(defaultScales), stats.ScalesSkipped)
}

func TestMatcherInvalidReference(t *testing.T) {
	m := NewMatcher(MatcherConfig{})
	ref := &Reference{ID: 1, Name: "empty", Image: image.NewNRGBA(image.Rect(0, 0, 0, 0))}

	_, _, err := m.Match(context.Background(), m.ScreenshotPlane(testutil.Canvas(30, 30)), ref, defaultScales)
	require.ErrorIs(t, err, errors.ErrInvalidImage)
}

func TestMatcherCandidateCap(t *testing.T) {
	icon := testutil.BlockIcon(6, 16, 4)
	shot := testutil.Canvas(64, 64)
	testutil.Paste(shot, icon, 10, 10)

	m := NewMatcher(MatcherConfig{MaxCandidates: 3})
	ref := &Reference{ID: 1, Key: "k", Name: "icon", Image: icon, Threshold: 0.01}

	candidates, stats, err := m.Match(context.Background(), m.ScreenshotPlane(shot), ref, []float64{1.0})
	require.NoError(t, err)
	assert.True(t, stats.Truncated)
	assert.Greater(t, stats.RawCandidates, 3)
	require.Len(t, candidates, 3)
	assert.Equal(t, 10, candidates[0].X)
	assert.Equal(t, 10, candidates[0].Y)
	assert.GreaterOrEqual(t, candidates[0].Similarity, candidates[1].Similarity)
}

func TestSuppressKeepsHighestOfOverlappingCandidates(t *testing.T) {
	candidates := []Candidate{
		{TemplateID: 1, X: 10, Y: 10, W: 20, H: 20, Scale: 1.0, Similarity: 0.85},
		{TemplateID: 1, X: 11, Y: 10, W: 20, H: 20, Scale: 1.0, Similarity: 0.97},
		{TemplateID: 1, X: 12, Y: 11, W: 22, H: 22, Scale: 1.1, Similarity: 0.90},
	}

	kept := Suppress(candidates, DefaultOverlap)
	require.Len(t, kept, 1)
	assert.Equal(t, candidates[1], kept[0])
	assert.InDelta(t, 0.85, candidates[0].Similarity, 0, "input is not reordered")
}

func TestSuppressKeepsSeparateIcons(t *testing.T) {
	candidates := []Candidate{
		{X: 0, Y: 0, W: 10, H: 10, Similarity: 0.9},
		{X: 50, Y: 50, W: 10, H: 10, Similarity: 0.95},
	}

	kept := Suppress(candidates, DefaultOverlap)
	require.Len(t, kept, 2)
	assert.Equal(t, 50, kept[0].X)
	assert.Equal(t, 0, kept[1].X)
}

func TestSuppressTieKeepsScanOrder(t *testing.T) {
	candidates := []Candidate{
		{X: 3, Y: 0, W: 10, H: 10, Similarity: 0.9},
		{X: 4, Y: 0, W: 10, H: 10, Similarity: 0.9},
	}

	kept := Suppress(candidates, DefaultOverlap)
	require.Len(t, kept, 1)
	assert.Equal(t, 3, kept[0].X)
}

func TestSuppressOverlapIsStrict(t *testing.T) {
	// IoU of these boxes is exactly 50/150
	candidates := []Candidate{
		{X: 0, Y: 0, W: 10, H: 10, Similarity: 0.9},
		{X: 5, Y: 0, W: 10, H: 10, Similarity: 0.8},
	}

	assert.Len(t, Suppress(candidates, 1.0/3.0), 2)
	assert.Len(t, Suppress(candidates, DefaultOverlap), 1)
	assert.Empty(t, Suppress(nil, DefaultOverlap))
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0},
		{"touching", image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10), 0},
		{"half shift", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 50.0 / 150.0},
		{"contained", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 5, 5), 0.25},
		{"empty", image.Rectangle{}, image.Rect(0, 0, 5, 5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-12)
		})
	}
}

func TestRegionFor(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 300)
	box := image.Rect(100, 100, 120, 120)

	tests := []struct {
		name string
		box  image.Rectangle
		dir  Direction
		want image.Rectangle
	}{
		{"right", box, Right, image.Rect(120, 85, 220, 135)},
		{"left", box, Left, image.Rect(0, 85, 100, 135)},
		{"top", box, Top, image.Rect(60, 50, 160, 100)},
		{"bottom", box, Bottom, image.Rect(60, 120, 160, 170)},
		{"right clipped", image.Rect(350, 0, 370, 20), Right, image.Rect(370, 0, 400, 35)},
		{"left at edge", image.Rect(0, 100, 20, 120), Left, EmptyRegion},
		{"bottom at edge", image.Rect(100, 280, 120, 300), Bottom, EmptyRegion},
		{"unknown direction", box, Direction("diagonal"), EmptyRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RegionFor(tt.box, 100, 50, tt.dir, bounds))
		})
	}
}

func TestRegionForStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	bounds := image.Rect(0, 0, 160, 90)

	for range 2000 {
		w, h := 1+rng.IntN(40), 1+rng.IntN(40)
		x, y := rng.IntN(bounds.Dx()-w+1), rng.IntN(bounds.Dy()-h+1)
		box := image.Rect(x, y, x+w, y+h)
		sw, sh := 1+rng.IntN(200), 1+rng.IntN(200)

		for _, dir := range []Direction{Right, Left, Top, Bottom} {
			r := RegionFor(box, sw, sh, dir, bounds)
			if r == EmptyRegion {
				continue
			}
			require.True(t, r.In(bounds), "region %v for box %v dir %s escapes %v", r, box, dir, bounds)
			require.False(t, r.Empty())
		}
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" Bottom ")
	require.NoError(t, err)
	assert.Equal(t, Bottom, d)

	_, err = ParseDirection("up")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestDetectFindsIconAtBothScales(t *testing.T) {
	icon := testutil.BlockIcon(8, 24, 4)
	shot := twoIconScreenshot(icon)
	det := newTestDetector(Config{})
	refs := []*Reference{{ID: 1, Key: "gold", Name: "gold_icon", Image: icon, Threshold: 0.8}}

	result, err := det.Detect(context.Background(), det.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)

	detections := result.Detections()
	require.Len(t, detections, 2)
	byX := map[int]Candidate{}
	for _, d := range detections {
		byX[d.X] = d
		assert.GreaterOrEqual(t, d.Similarity, 0.8)
		assert.Equal(t, uint(1), d.TemplateID)
	}
	require.Contains(t, byX, 20)
	require.Contains(t, byX, 200)
	assert.Equal(t, 30, byX[20].Y)
	assert.InDelta(t, 1.0, byX[20].Scale, 1e-9)
	assert.Equal(t, 120, byX[200].Y)
	assert.InDelta(t, 0.9, byX[200].Scale, 1e-9)
	assert.Zero(t, result.Skipped())
	assert.GreaterOrEqual(t, result.RawCandidates, 2)
}

func TestDetectWithBlur(t *testing.T) {
	icon := testutil.BlockIcon(9, 24, 6)
	shot := testutil.Canvas(160, 100)
	testutil.Paste(shot, icon, 70, 40)
	det := newTestDetector(Config{BlurSigma: 0.8, Scales: []float64{1.0}})
	refs := []*Reference{{ID: 1, Key: "b", Name: "blurred", Image: icon, Threshold: 0.8}}

	result, err := det.Detect(context.Background(), det.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)
	detections := result.Detections()
	require.Len(t, detections, 1)
	assert.Equal(t, image.Pt(70, 40), image.Pt(detections[0].X, detections[0].Y))
}

func TestDetectIsDeterministic(t *testing.T) {
	iconA := testutil.BlockIcon(10, 24, 4)
	iconB := testutil.BlockIcon(11, 20, 5)
	shot := twoIconScreenshot(iconA)
	testutil.Paste(shot, iconB, 120, 20)
	refs := []*Reference{
		{ID: 1, Key: "a", Name: "a", Image: iconA, Threshold: 0.7},
		{ID: 2, Key: "b", Name: "b", Image: iconB, Threshold: 0.7},
	}

	sequential := newTestDetector(Config{Workers: 1})
	parallel := newTestDetector(Config{Workers: 4})

	first, err := sequential.Detect(context.Background(), sequential.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)
	second, err := sequential.Detect(context.Background(), sequential.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)
	third, err := parallel.Detect(context.Background(), parallel.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)

	assert.Equal(t, first.Detections(), second.Detections())
	assert.Equal(t, first.Detections(), third.Detections())
}

func TestDetectThresholdMonotonicity(t *testing.T) {
	icon := testutil.BlockIcon(12, 24, 4)
	shot := twoIconScreenshot(icon)
	testutil.Paste(shot, testutil.Scaled(icon, 1.15), 120, 60)
	det := newTestDetector(Config{})

	plane := det.Matcher().ScreenshotPlane(shot)
	previous := -1
	for _, threshold := range []float64{0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 0.99} {
		refs := []*Reference{{ID: 1, Key: "m", Name: "m", Image: icon, Threshold: threshold}}
		result, err := det.Detect(context.Background(), plane, refs)
		require.NoError(t, err)

		n := len(result.Detections())
		if previous >= 0 {
			assert.LessOrEqual(t, n, previous, "threshold %.2f", threshold)
		}
		previous = n
	}
}

func TestDetectDoesNotMergeAcrossTemplates(t *testing.T) {
	icon := testutil.BlockIcon(13, 24, 4)
	shot := testutil.Canvas(100, 100)
	testutil.Paste(shot, icon, 30, 30)
	refs := []*Reference{
		{ID: 1, Key: "x", Name: "first", Image: icon, Threshold: 0.8},
		{ID: 2, Key: "x", Name: "second", Image: icon, Threshold: 0.8},
	}
	det := newTestDetector(Config{Scales: []float64{1.0}})

	result, err := det.Detect(context.Background(), det.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)
	detections := result.Detections()
	require.Len(t, detections, 2)
	assert.Equal(t, uint(1), detections[0].TemplateID)
	assert.Equal(t, uint(2), detections[1].TemplateID)
}

func TestDetectSkipsUnmatchableTemplates(t *testing.T) {
	icon := testutil.BlockIcon(14, 16, 4)
	shot := testutil.Canvas(60, 60)
	testutil.Paste(shot, icon, 5, 5)
	refs := []*Reference{
		{ID: 1, Key: "big", Name: "big", Image: testutil.BlockIcon(15, 80, 4), Threshold: 0.8},
		{ID: 2, Key: "flat", Name: "flat", Image: testutil.Canvas(10, 10), Threshold: 0.8},
		{ID: 3, Key: "ok", Name: "ok", Image: icon, Threshold: 0.8},
	}
	det := newTestDetector(Config{Scales: []float64{1.0}})

	result, err := det.Detect(context.Background(), det.Matcher().ScreenshotPlane(shot), refs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped())
	assert.True(t, result.Templates[1].Stats.Flat)
	require.Len(t, result.Detections(), 1)
	assert.Equal(t, uint(3), result.Detections()[0].TemplateID)
}

func TestDetectEmptyTemplateSet(t *testing.T) {
	det := newTestDetector(Config{})
	_, err := det.Detect(context.Background(), det.Matcher().ScreenshotPlane(testutil.Canvas(10, 10)), nil)
	require.ErrorIs(t, err, errors.ErrEmptyTemplateSet)
	assert.True(t, errors.IsInputError(err))
}

func TestDetectCancelled(t *testing.T) {
	icon := testutil.BlockIcon(16, 16, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	det := newTestDetector(Config{})

	_, err := det.Detect(ctx, det.Matcher().ScreenshotPlane(testutil.Canvas(64, 64)),
		[]*Reference{{ID: 1, Key: "c", Name: "c", Image: icon, Threshold: 0.8}})
	require.ErrorIs(t, err, context.Canceled)
}

// scoreFunc is a Correlator returning a score map filled by fn, or
// ErrFlatTemplate when fn returns false for the template size.
type scoreFunc func(tmpl *Plane) (float32, bool)

func (f scoreFunc) Correlate(_ context.Context, img, tmpl *Plane) (*ScoreMap, error) {
	score, ok := f(tmpl)
	if !ok {
		return nil, ErrFlatTemplate
	}
	out := &ScoreMap{W: img.W - tmpl.W + 1, H: img.H - tmpl.H + 1}
	out.Scores = make([]float32, out.W*out.H)
	out.Scores[0] = score
	return out, nil
}

func TestMatcherThresholdBoundary(t *testing.T) {
	icon := testutil.BlockIcon(17, 16, 4)
	shot := testutil.Canvas(32, 32)

	tests := []struct {
		name     string
		score    float32
		accepted bool
	}{
		// float32(0.7) is 0.69999998..., below a float64 threshold of 0.7
		{"rounds onto threshold", float32(0.7), false},
		{"just above", 0.7000001, true},
		{"well above", 0.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(MatcherConfig{Correlator: scoreFunc(func(*Plane) (float32, bool) { return tt.score, true })})
			ref := &Reference{ID: 1, Key: "t", Name: "t", Image: icon, Threshold: 0.7}

			candidates, _, err := m.Match(context.Background(), m.ScreenshotPlane(shot), ref, []float64{1.0})
			require.NoError(t, err)
			if !tt.accepted {
				assert.Empty(t, candidates)
				return
			}
			require.Len(t, candidates, 1)
			assert.GreaterOrEqual(t, candidates[0].Similarity, ref.Threshold)
		})
	}
}

func TestMatcherFlatAtOneScaleKeepsOtherScales(t *testing.T) {
	icon := testutil.BlockIcon(18, 16, 4)
	shot := testutil.Canvas(64, 64)
	// only the 16 pixel version counts as flat
	corr := scoreFunc(func(tmpl *Plane) (float32, bool) { return 0.9, tmpl.W != 16 })

	m := NewMatcher(MatcherConfig{Correlator: corr})
	ref := &Reference{ID: 1, Key: "f", Name: "f", Image: icon, Threshold: 0.8}

	candidates, stats, err := m.Match(context.Background(), m.ScreenshotPlane(shot), ref, []float64{0.5, 1.0, 1.5})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ScalesTried)
	assert.Equal(t, 1, stats.ScalesFlat)
	assert.False(t, stats.Flat)
	require.Len(t, candidates, 2)
	assert.InDelta(t, 0.5, candidates[0].Scale, 1e-9)
	assert.InDelta(t, 1.5, candidates[1].Scale, 1e-9)
}

func TestMatcherFlatAtEveryScale(t *testing.T) {
	m := NewMatcher(MatcherConfig{Correlator: scoreFunc(func(*Plane) (float32, bool) { return 0, false })})
	ref := &Reference{ID: 1, Key: "f", Name: "f", Image: testutil.BlockIcon(19, 16, 4), Threshold: 0.8}

	candidates, stats, err := m.Match(context.Background(), m.ScreenshotPlane(testutil.Canvas(64, 64)), ref, []float64{1.0, 1.5})
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.True(t, stats.Flat)
	assert.Equal(t, 2, stats.ScalesFlat)
}

func TestNewResolvesWorkers(t *testing.T) {
	assert.Equal(t, runtime.GOMAXPROCS(0), New(Config{}).Workers())
	assert.Equal(t, runtime.GOMAXPROCS(0), New(Config{Workers: -1}).Workers())
	assert.Equal(t, 3, New(Config{Workers: 3}).Workers())

	assert.Equal(t, 1, bandWorkers(1))
	assert.GreaterOrEqual(t, bandWorkers(runtime.GOMAXPROCS(0)*4), 1)
	assert.LessOrEqual(t, bandWorkers(2)*2, max(2, runtime.GOMAXPROCS(0)))
}

func TestPlaneTablesAreShared(t *testing.T) {
	icon := testutil.BlockIcon(20, 16, 4)
	shot := testutil.Canvas(64, 48)
	testutil.Paste(shot, icon, 30, 12)
	plane := NewPlane(shot, 0)

	first := plane.tables()
	_, err := SpatialCorrelator{Workers: 2}.Correlate(context.Background(), plane, NewPlane(icon, 0))
	require.NoError(t, err)
	assert.Same(t, first, plane.tables())

	sum, _ := first.window(30, 12, 16, 16)
	var want float64
	for y := 12; y < 28; y++ {
		for x := 30; x < 46; x++ {
			want += float64(plane.At(x, y))
		}
	}
	assert.InDelta(t, want, sum, 1e-6)
}
