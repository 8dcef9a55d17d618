// Package imageutil decodes screenshots and reference icons, bounds their
// size and derives the content fingerprints used as template identity.
package imageutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Registers the webp decoder; imaging already registers bmp, gif, jpeg, png and tiff.
	_ "golang.org/x/image/webp"

	"github.com/tphakala/iconscan/internal/errors"
)

// FingerprintSize is the side of the normalized grayscale image hashed by Fingerprint
const FingerprintSize = 64

// Load opens and decodes an image file, applying EXIF orientation.
// Decode failures wrap errors.ErrInvalidImage.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		category := errors.CategoryFileIO
		if !os.IsNotExist(err) {
			category = errors.CategoryImageDecode
		}
		return nil, errors.New(fmt.Errorf("%w: %s: %w", errors.ErrInvalidImage, filepath.Base(path), err)).
			Component("imageutil").
			Category(category).
			FileContext(path).
			Build()
	}
	defer func() { _ = f.Close() }()

	img, err := Decode(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", filepath.Base(path), err)).
			Component("imageutil").
			Category(errors.CategoryImageDecode).
			FileContext(path).
			Build()
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New(fmt.Errorf("%w: %s has no pixels", errors.ErrInvalidImage, filepath.Base(path))).
			Component("imageutil").
			Category(errors.CategoryImageDecode).
			FileContext(path).
			Build()
	}
	return img, nil
}

// Decode decodes an image from r, applying EXIF orientation. Decode failures
// wrap errors.ErrInvalidImage.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", errors.ErrInvalidImage, err)).
			Component("imageutil").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return img, nil
}

// FitWithin downscales img to fit inside maxWidth x maxHeight preserving the
// aspect ratio. It returns the image to process and the factor mapping
// processed coordinates back to source coordinates (source = processed * factor).
// Images that already fit are returned unchanged with factor 1.
func FitWithin(img image.Image, maxWidth, maxHeight int) (image.Image, float64) {
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img, 1.0
	}

	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	return fitted, float64(b.Dx()) / float64(fitted.Bounds().Dx())
}

// Fingerprint returns the hex SHA-256 of the image's pixel content after
// normalizing it to a 64x64 grayscale grid. Identical icons saved in
// different files or formats share a fingerprint.
func Fingerprint(img image.Image) string {
	norm := imaging.Grayscale(imaging.Resize(img, FingerprintSize, FingerprintSize, imaging.Lanczos))

	sum := sha256.New()
	// Grayscale leaves R=G=B; hashing one channel keeps the digest format independent.
	pix := make([]byte, 0, FingerprintSize*FingerprintSize)
	for i := 0; i < len(norm.Pix); i += 4 {
		pix = append(pix, norm.Pix[i])
	}
	sum.Write(pix)

	return hex.EncodeToString(sum.Sum(nil))
}

// SavePNG writes img to path as PNG, creating parent directories.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.New(err).
			Component("imageutil").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.New(err).
			Component("imageutil").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}
	return nil
}

// EncodePNG encodes img as PNG bytes for OCR engines.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.New(err).
			Component("imageutil").
			Category(errors.CategoryProcessing).
			Context("operation", "encode_png").
			Build()
	}
	return buf.Bytes(), nil
}

// IsEmpty reports whether img has no pixels
func IsEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}
