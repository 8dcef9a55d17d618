// Package testutil provides shared test fixtures for iconscan.
// Images are generated in code so tests never depend on checked-in binaries.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Background is the gray level used for generated screenshots
const Background = 96

// BlockIcon returns a size x size grayscale icon made of block x block cells
// with random intensities. The same seed always yields the same icon.
func BlockIcon(seed uint64, size, block int) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	cells := (size + block - 1) / block
	levels := make([]uint8, cells*cells)
	for i := range levels {
		levels[i] = uint8(rng.IntN(256))
	}
	for y := range size {
		for x := range size {
			v := levels[(y/block)*cells+x/block]
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// Scaled resizes an icon the way the matcher scales templates
func Scaled(icon image.Image, scale float64) *image.NRGBA {
	b := icon.Bounds()
	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	filter := imaging.CatmullRom
	if scale < 1 {
		filter = imaging.Box
	}
	return imaging.Resize(icon, w, h, filter)
}

// Canvas returns a w x h screenshot filled with the background gray
func Canvas(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: Background, G: Background, B: Background, A: 255})
}

// Paste draws src onto dst with its top-left corner at (x, y)
func Paste(dst draw.Image, src image.Image, x, y int) {
	r := image.Rect(x, y, x+src.Bounds().Dx(), y+src.Bounds().Dy())
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

// FillRect paints a solid gray rectangle
func FillRect(dst draw.Image, r image.Rectangle, level uint8) {
	draw.Draw(dst, r, &image.Uniform{C: color.NRGBA{R: level, G: level, B: level, A: 255}}, image.Point{}, draw.Src)
}

// SaveImage writes img below dir, creating subdirectories, and returns its path
func SaveImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path))
	return path
}
