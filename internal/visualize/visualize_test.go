package visualize

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/testutil"
)

func TestMarkLabel(t *testing.T) {
	v := int64(573)
	assert.Equal(t, "gold 0.97 = 573", Mark{Name: "gold", Similarity: 0.971, Value: &v}.Label())
	assert.Equal(t, "gold 0.80", Mark{Name: "gold", Similarity: 0.8}.Label())
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "shot_01_detected.png"), OutputPath("out", "/tmp/in/shot_01.jpg"))
}

func TestRenderDrawsBox(t *testing.T) {
	shot := testutil.Canvas(200, 100)
	box := image.Rect(60, 40, 90, 70)

	out := Render(shot, []Mark{{Box: box, Name: "gold", Similarity: 0.9}})
	require.Equal(t, shot.Bounds(), out.Bounds())

	// the box outline is green, the source stays untouched
	r, g, b, _ := out.At(box.Min.X+1, box.Min.Y+box.Dy()/2).RGBA()
	assert.Greater(t, g>>8, uint32(200))
	assert.Less(t, r>>8, uint32(50))
	assert.Less(t, b>>8, uint32(50))
	assert.Equal(t, color.NRGBA{R: testutil.Background, G: testutil.Background, B: testutil.Background, A: 255}, shot.NRGBAAt(box.Min.X+1, box.Min.Y+1))

	// far from any mark the background is unchanged
	r, g, b, _ = out.At(5, 95).RGBA()
	assert.Equal(t, uint32(testutil.Background), r>>8)
	assert.Equal(t, uint32(testutil.Background), g>>8)
	assert.Equal(t, uint32(testutil.Background), b>>8)
}

func TestRenderLabelAtTopEdge(t *testing.T) {
	shot := testutil.Canvas(120, 60)
	assert.NotPanics(t, func() {
		Render(shot, []Mark{{Box: image.Rect(100, 0, 120, 20), Name: "edge", Similarity: 1}})
	})
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	w := NewWriter(dir, nil)

	path, err := w.Write(testutil.Canvas(64, 48), "shots/screen.png", []Mark{
		{Box: image.Rect(4, 20, 20, 36), Region: image.Rect(20, 18, 60, 38), Name: "x", Similarity: 0.85},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "screen_detected.png"), path)

	img, err := imageutil.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}
