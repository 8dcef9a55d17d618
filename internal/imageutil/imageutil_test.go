package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/iconscan/internal/errors"
)

// checkerboard draws a w x h image of cell-sized squares in two colors.
func checkerboard(w, h, cell int, a, b color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

func TestFingerprintDeterministic(t *testing.T) {
	img := checkerboard(32, 32, 4, color.White, color.Black)

	fp1 := Fingerprint(img)
	fp2 := Fingerprint(img)

	assert.Len(t, fp1, 64)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintDiffersForDifferentContent(t *testing.T) {
	a := checkerboard(32, 32, 4, color.White, color.Black)
	b := checkerboard(32, 32, 8, color.White, color.Black)

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSurvivesPNGRoundTrip(t *testing.T) {
	img := checkerboard(40, 24, 5, color.RGBA{R: 200, G: 40, B: 40, A: 255}, color.Black)
	path := filepath.Join(t.TempDir(), "icons", "gold.png")

	require.NoError(t, SavePNG(img, path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(img), Fingerprint(loaded))
}

func TestLoadInvalidImage(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
	}{
		{"garbage bytes", bad, errors.CategoryImageDecode},
		{"missing file", filepath.Join(dir, "missing.png"), errors.CategoryFileIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidImage)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}
}

func TestDecode(t *testing.T) {
	encoded, err := EncodePNG(checkerboard(8, 8, 2, color.White, color.Black))
	require.NoError(t, err)

	img, err := Decode(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	_, err = Decode(bytes.NewReader([]byte{0x00, 0x01}))
	assert.ErrorIs(t, err, errors.ErrInvalidImage)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		wantW      int
		wantH      int
		wantFactor float64
	}{
		{"already fits", 800, 600, 800, 600, 1.0},
		{"wide", 3840, 2160, 1920, 1080, 2.0},
		{"tall", 1000, 2160, 500, 1080, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out, factor := FitWithin(img, 1920, 1080)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
			assert.InDelta(t, tt.wantFactor, factor, 1e-9)
		})
	}
}

// noise returns a deterministic grayscale noise image brightened by offset.
func noise(seed uint64, offset uint8) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed))
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(20+rng.IntN(200)) + offset
	}
	return img
}

func TestPerceptualHash(t *testing.T) {
	ha, err := PerceptualHash(noise(1, 0))
	require.NoError(t, err)
	hb, err := PerceptualHash(noise(1, 10))
	require.NoError(t, err)
	hc, err := PerceptualHash(noise(2, 0))
	require.NoError(t, err)

	assert.Len(t, ha, 16)

	near, err := HashDistance(ha, hb)
	require.NoError(t, err)
	assert.LessOrEqual(t, near, NearDuplicateDistance)

	far, err := HashDistance(ha, hc)
	require.NoError(t, err)
	assert.Greater(t, far, NearDuplicateDistance)

	_, err = HashDistance("zz", ha)
	assert.Error(t, err)
}
