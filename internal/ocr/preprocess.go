package ocr

import (
	"image"
	"slices"

	"github.com/disintegration/imaging"
)

const (
	upscaleFactor      = 2
	thresholdBlockSize = 11 // odd neighbourhood side for the adaptive threshold
	thresholdOffset    = 2  // subtracted from the neighbourhood mean
)

// Preprocess normalizes a search region for recognition: grayscale, 2x
// upscale, adaptive mean threshold and a 3x3 median filter. The result is a
// black and white image.
func Preprocess(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := imaging.Grayscale(img)
	gray = imaging.Resize(gray, b.Dx()*upscaleFactor, b.Dy()*upscaleFactor, imaging.CatmullRom)

	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	src := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			src[y*w+x] = gray.Pix[y*gray.Stride+x*4]
		}
	}

	return medianFilter(adaptiveThreshold(src, w, h), w, h)
}

// adaptiveThreshold sets a pixel white when it is brighter than the mean of
// its neighbourhood minus thresholdOffset. Neighbourhoods are clipped at the
// image border.
func adaptiveThreshold(src []uint8, w, h int) []uint8 {
	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := range h {
		var row int64
		for x := range w {
			row += int64(src[y*w+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	r := thresholdBlockSize / 2
	out := make([]uint8, w*h)
	for y := range h {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := range w {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			sum := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
			n := int64((y1 - y0) * (x1 - x0))
			if int64(src[y*w+x])*n > sum-thresholdOffset*n {
				out[y*w+x] = 255
			}
		}
	}
	return out
}

// medianFilter applies a 3x3 median with edge replication
func medianFilter(src []uint8, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	var window [9]uint8
	for y := range h {
		for x := range w {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				yy := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := min(max(x+dx, 0), w-1)
					window[i] = src[yy*w+xx]
					i++
				}
			}
			slices.Sort(window[:])
			out.Pix[y*out.Stride+x] = window[4]
		}
	}
	return out
}
