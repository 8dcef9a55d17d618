// Package ocr reads text and numbers from the search regions next to detected
// icons. Recognition is delegated to an Engine; the Reader normalizes the
// region first and derives the primary number from the recognized fragments.
package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// Engine selection modes
const (
	ModeAuto   = "auto"
	ModeLocal  = "local"
	ModeNeural = "neural"
)

// ErrNoEngine is reported by reads when no OCR backend could be opened
var ErrNoEngine = errors.NewStd("no OCR engine available")

// Fragment is one piece of recognized text
type Fragment struct {
	Text       string
	Confidence float64 // 0..1
	Box        image.Rectangle
}

// Engine recognizes text in an image
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
	Close() error
}

// Backend is a named engine constructor
type Backend struct {
	Name string
	Open func() (Engine, error)
}

// Select opens the engine requested by mode. In auto mode the backends are
// probed in order and the first that opens is returned; when none opens the
// result is nil without error and reads yield empty results. An explicitly
// requested backend that fails to open is a configuration error.
func Select(mode string, backends []Backend, log logger.Logger) (Engine, error) {
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	if mode == ModeAuto || mode == "" {
		for _, b := range backends {
			engine, err := b.Open()
			if err != nil {
				log.Debug("OCR backend unavailable",
					logger.String("engine", b.Name),
					logger.Error(err))
				continue
			}
			log.Info("OCR engine selected",
				logger.String("engine", b.Name),
				logger.String("mode", ModeAuto))
			return engine, nil
		}
		log.Warn("no OCR engine available, detections will be stored without values",
			logger.Int("backends_probed", len(backends)))
		return nil, nil
	}

	for _, b := range backends {
		if b.Name != mode {
			continue
		}
		engine, err := b.Open()
		if err != nil {
			return nil, errors.New(err).
				Component("ocr").
				Category(errors.CategoryConfiguration).
				Context("engine", mode).
				Build()
		}
		log.Info("OCR engine selected", logger.String("engine", b.Name))
		return engine, nil
	}

	return nil, errors.Newf("unknown OCR engine %q", mode).
		Component("ocr").
		Category(errors.CategoryConfiguration).
		Build()
}
