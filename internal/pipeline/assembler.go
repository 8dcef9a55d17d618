package pipeline

import (
	"image"
	"math"
	"time"

	"github.com/tphakala/iconscan/internal/datastore"
	"github.com/tphakala/iconscan/internal/detector"
	"github.com/tphakala/iconscan/internal/ocr"
)

// Source describes the screenshot a detection was found in
type Source struct {
	Path   string
	Bounds image.Rectangle // source image bounds, origin at 0,0
	Factor float64         // source = processed * Factor
}

// Meta is stamped on every record of a run
type Meta struct {
	RunID     string
	Note      string
	Timestamp time.Time
}

// SourceBox maps a candidate found in the processed image back to source
// coordinates. The result is clamped inside the source bounds and is at
// least 1x1.
func SourceBox(c detector.Candidate, src Source) image.Rectangle {
	f := src.Factor
	if f <= 0 {
		f = 1
	}
	x := int(math.Round(float64(c.X) * f))
	y := int(math.Round(float64(c.Y) * f))
	w := max(int(math.Round(float64(c.W)*f)), 1)
	h := max(int(math.Round(float64(c.H)*f)), 1)

	b := src.Bounds
	x = min(max(x, b.Min.X), b.Max.X-1)
	y = min(max(y, b.Min.Y), b.Max.Y-1)
	w = min(w, b.Max.X-x)
	h = min(h, b.Max.Y-y)
	return image.Rect(x, y, x+w, y+h)
}

// Assemble builds the record persisted for one accepted detection. box is
// already in source coordinates. A failed or empty OCR result leaves the
// value nil and the text empty.
func Assemble(tmpl datastore.Template, c detector.Candidate, box image.Rectangle, read ocr.Result, src Source, meta Meta) datastore.Record {
	det := datastore.Detection{
		TemplateID: tmpl.ID,
		RunID:      meta.RunID,
		X:          box.Min.X,
		Y:          box.Min.Y,
		Width:      box.Dx(),
		Height:     box.Dy(),
		Scale:      c.Scale,
		Similarity: c.Similarity,
		SourcePath: src.Path,
		Timestamp:  meta.Timestamp,
		Note:       meta.Note,
	}
	if !read.Failed {
		det.Value = read.Number
		det.Text = read.Text
	}
	return datastore.Record{Template: tmpl, Detection: det}
}
