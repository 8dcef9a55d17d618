package detector

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Plane is a single-channel intensity grid in row-major order, values 0..255.
// Pix must not be modified once the plane has been correlated against.
type Plane struct {
	W, H int
	Pix  []float32

	satOnce sync.Once
	sat     *summedAreaTables
}

// NewPlane converts img to grayscale, applies a gaussian blur with the given
// sigma (0 disables it) and returns the intensity grid.
func NewPlane(img image.Image, blurSigma float64) *Plane {
	gray := imaging.Grayscale(img)
	if blurSigma > 0 {
		gray = imaging.Blur(gray, blurSigma)
	}
	return planeFromNRGBA(gray)
}

func planeFromNRGBA(img *image.NRGBA) *Plane {
	b := img.Bounds()
	p := &Plane{W: b.Dx(), H: b.Dy(), Pix: make([]float32, b.Dx()*b.Dy())}
	for y := range p.H {
		row := img.Pix[y*img.Stride : y*img.Stride+p.W*4]
		for x := range p.W {
			p.Pix[y*p.W+x] = float32(row[x*4])
		}
	}
	return p
}

// At returns the intensity at (x, y)
func (p *Plane) At(x, y int) float32 {
	return p.Pix[y*p.W+x]
}

// Bounds returns the plane rectangle anchored at the origin
func (p *Plane) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.W, p.H)
}

// tables returns the plane's summed-area tables, built on first use and shared
// by every template and scale matched against it.
func (p *Plane) tables() *summedAreaTables {
	p.satOnce.Do(func() {
		p.sat = newSummedAreaTables(p)
	})
	return p.sat
}
