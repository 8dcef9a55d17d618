package detector

import (
	"image"
	"strings"

	"github.com/tphakala/iconscan/internal/errors"
)

// Direction selects the side of a detection's bounding box the OCR search
// region is anchored to.
type Direction string

const (
	Right  Direction = "right"
	Left   Direction = "left"
	Top    Direction = "top"
	Bottom Direction = "bottom"
)

// EmptyRegion is returned when a search region has no pixels inside the
// screenshot. Callers treat it as "no text found".
var EmptyRegion = image.Rectangle{}

// ParseDirection converts a configuration value to a Direction
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Right, Left, Top, Bottom:
		return d, nil
	default:
		return "", errors.Newf("unknown search direction %q", s).
			Component("detector").
			Category(errors.CategoryValidation).
			Build()
	}
}

// RegionFor returns the search rectangle of size width x height next to box on
// the given side. The perpendicular axis is centered on the box. The result is
// clipped to bounds and is either fully contained in bounds or EmptyRegion.
func RegionFor(box image.Rectangle, width, height int, dir Direction, bounds image.Rectangle) image.Rectangle {
	if width <= 0 || height <= 0 || box.Empty() {
		return EmptyRegion
	}

	cx := box.Min.X + (box.Dx()-width)/2
	cy := box.Min.Y + (box.Dy()-height)/2

	var r image.Rectangle
	switch dir {
	case Right:
		r = image.Rect(box.Max.X, cy, box.Max.X+width, cy+height)
	case Left:
		r = image.Rect(box.Min.X-width, cy, box.Min.X, cy+height)
	case Top:
		r = image.Rect(cx, box.Min.Y-height, cx+width, box.Min.Y)
	case Bottom:
		r = image.Rect(cx, box.Max.Y, cx+width, box.Max.Y+height)
	default:
		return EmptyRegion
	}

	r = r.Intersect(bounds)
	if r.Empty() {
		return EmptyRegion
	}
	return r
}
