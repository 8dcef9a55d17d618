//go:build notesseract

package tesseract

import (
	"context"
	"image"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/ocr"
)

// Engine is unavailable in builds without libtesseract
type Engine struct{}

// Open always fails; the binary was built with the notesseract tag.
func Open(Config) (*Engine, error) {
	return nil, errors.Newf("tesseract support not compiled in (notesseract build tag)").
		Component("ocr.tesseract").
		Category(errors.CategoryConfiguration).
		Build()
}

func (*Engine) Name() string { return ocr.ModeLocal }

func (*Engine) Recognize(context.Context, image.Image) ([]ocr.Fragment, error) {
	return nil, ocr.ErrNoEngine
}

func (*Engine) Close() error { return nil }
