package detector

import "image"

// Candidate is a raw match before suppression. X and Y are the top-left
// offset in screenshot coordinates, W and H the scaled template size.
type Candidate struct {
	TemplateID uint
	X, Y       int
	W, H       int
	Scale      float64
	Similarity float64
}

// Box returns the candidate's bounding box
func (c Candidate) Box() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
}

// Reference is a template prepared for matching
type Reference struct {
	ID        uint
	Key       string // content fingerprint, used for scaled-template caching
	Name      string
	Image     image.Image
	Threshold float64
}
