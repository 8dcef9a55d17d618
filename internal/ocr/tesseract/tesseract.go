//go:build !notesseract

// Package tesseract is the local OCR engine backed by libtesseract.
package tesseract

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/ocr"
)

// Engine recognizes words with Tesseract. The underlying client is not safe
// for concurrent use, calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    logger.Logger
}

// Open creates a Tesseract client for the configured language and verifies
// that the library and its language data load.
func Open(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("ocr").Module("tesseract")
	}

	client := gosseract.NewClient()
	lang := LanguageCode(cfg.Language)
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return nil, wrap(err, "set_language")
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, wrap(err, "set_whitelist")
		}
	}

	e := &Engine{client: client, log: log}
	if err := e.probe(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Debug("tesseract initialized",
		logger.String("language", lang),
		logger.String("version", client.Version()))
	return e, nil
}

// probe runs recognition on a blank image, which fails when the language data
// is missing.
func (e *Engine) probe() error {
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	data, err := imageutil.EncodePNG(blank)
	if err != nil {
		return wrap(err, "probe")
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return wrap(err, "probe")
	}
	if _, err := e.client.Text(); err != nil {
		return wrap(err, "probe")
	}
	return nil
}

// Name implements ocr.Engine
func (e *Engine) Name() string {
	return ocr.ModeLocal
}

// Recognize implements ocr.Engine. Confidence is scaled to 0..1.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, wrap(err, "encode")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, wrap(err, "set_image")
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, wrap(err, "recognize")
	}

	fragments := make([]ocr.Fragment, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" || b.Confidence < 0 {
			continue
		}
		fragments = append(fragments, ocr.Fragment{
			Text:       word,
			Confidence: b.Confidence / 100,
			Box:        b.Box,
		})
	}
	return fragments, nil
}

// Close releases the Tesseract client
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

func wrap(err error, op string) error {
	return errors.New(err).
		Component("ocr.tesseract").
		Category(errors.CategoryOCR).
		Context("operation", op).
		Build()
}
