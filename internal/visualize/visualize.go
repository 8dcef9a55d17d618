// Package visualize renders detection overlays onto screenshots.
package visualize

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// Suffix is appended to the source file stem of an overlay image
const Suffix = "_detected.png"

const (
	lineWidth  = 2
	labelPadX  = 3
	labelPadY  = 2
	labelAlpha = 0.75
)

// Mark is one detection drawn on the overlay, in source image coordinates
type Mark struct {
	Box        image.Rectangle
	Region     image.Rectangle // OCR search region, empty when none
	Name       string
	Similarity float64
	Value      *int64
}

// Label returns the caption drawn above the box
func (m Mark) Label() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %.2f", m.Name, m.Similarity)
	if m.Value != nil {
		fmt.Fprintf(&sb, " = %d", *m.Value)
	}
	return sb.String()
}

// Render returns a copy of img with every mark's box, search region and
// label drawn on it.
func Render(img image.Image, marks []Mark) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(lineWidth)

	for _, m := range marks {
		if !m.Region.Empty() {
			dc.SetRGBA(0.2, 0.6, 1, 0.9)
			dc.SetDash(4, 3)
			drawRect(dc, m.Region)
			dc.SetDash()
		}

		dc.SetRGB(0, 1, 0)
		drawRect(dc, m.Box)
		drawLabel(dc, m.Label(), m.Box)
	}

	return dc.Image()
}

// drawRect strokes r inset by half the line width so it stays inside the box
func drawRect(dc *gg.Context, r image.Rectangle) {
	half := lineWidth / 2.0
	dc.DrawRectangle(float64(r.Min.X)+half, float64(r.Min.Y)+half,
		float64(r.Dx())-lineWidth, float64(r.Dy())-lineWidth)
	dc.Stroke()
}

// drawLabel draws text on a dark background above box, or below it when
// there is no room above.
func drawLabel(dc *gg.Context, text string, box image.Rectangle) {
	w, h := dc.MeasureString(text)
	bw, bh := w+2*labelPadX, h+2*labelPadY

	x := float64(box.Min.X)
	y := float64(box.Min.Y) - bh
	if y < 0 {
		y = float64(box.Max.Y)
	}
	if maxX := float64(dc.Width()) - bw; x > maxX {
		x = max(maxX, 0)
	}

	dc.SetRGBA(0, 0, 0, labelAlpha)
	dc.DrawRectangle(x, y, bw, bh)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, x+labelPadX, y+labelPadY, 0, 1)
}

// OutputPath returns where the overlay of sourcePath is written in dir
func OutputPath(dir, sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+Suffix)
}

// Writer renders overlays into a directory
type Writer struct {
	dir string
	log logger.Logger
}

// NewWriter creates a Writer for dir
func NewWriter(dir string, log logger.Logger) *Writer {
	if log == nil {
		log = logger.Global().Module("visualize")
	}
	return &Writer{dir: dir, log: log}
}

// Write renders marks onto img and saves the overlay as PNG. It returns the
// written path.
func (w *Writer) Write(img image.Image, sourcePath string, marks []Mark) (string, error) {
	path := OutputPath(w.dir, sourcePath)
	if err := saveImage(Render(img, marks), path); err != nil {
		return "", err
	}

	w.log.Debug("overlay written",
		logger.String("path", path),
		logger.Int("detections", len(marks)))
	return path, nil
}

func saveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.New(err).
			Component("visualize").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	if err := gg.SavePNG(path, img); err != nil {
		return errors.New(err).
			Component("visualize").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	return nil
}
