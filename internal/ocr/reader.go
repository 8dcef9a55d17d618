package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// Result is the outcome of reading one search region. Failed reads carry no
// fragments and the cause in Err; they never abort the caller.
type Result struct {
	Fragments []Fragment
	Number    *int64 // primary number, nil when no fragment holds digits
	Text      string // fragments joined by a space
	Engine    string
	Duration  time.Duration
	Failed    bool
	Err       error
}

// HasValue reports whether a primary number was derived
func (r Result) HasValue() bool {
	return r.Number != nil
}

// ReaderConfig configures a Reader
type ReaderConfig struct {
	Preprocess bool
	Logger     logger.Logger
}

// Reader turns search region images into Results using one Engine. A nil
// engine is allowed; every read then fails softly with ErrNoEngine.
type Reader struct {
	engine     Engine
	preprocess bool
	log        logger.Logger
}

// NewReader creates a Reader around engine
func NewReader(engine Engine, cfg ReaderConfig) *Reader {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	return &Reader{engine: engine, preprocess: cfg.Preprocess, log: log}
}

// EngineName returns the name of the active engine, or "none"
func (r *Reader) EngineName() string {
	if r.engine == nil {
		return "none"
	}
	return r.engine.Name()
}

// Read recognizes text in img and derives the primary number. Recognition
// errors and panics are logged and returned as a failed Result.
func (r *Reader) Read(ctx context.Context, img image.Image) (res Result) {
	res.Engine = r.EngineName()
	if img == nil || img.Bounds().Empty() {
		return res
	}
	if r.engine == nil {
		res.Failed = true
		res.Err = ErrNoEngine
		return res
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if p := recover(); p != nil {
			res = Result{Engine: res.Engine, Duration: res.Duration, Failed: true}
			res.Err = r.fail(fmt.Errorf("OCR engine panic: %v", p), img)
		}
	}()

	input := img
	if r.preprocess {
		input = Preprocess(img)
	}

	fragments, err := r.engine.Recognize(ctx, input)
	if err != nil {
		res.Failed = true
		res.Err = r.fail(err, img)
		return res
	}

	res.Fragments = fragments
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if t := strings.TrimSpace(f.Text); t != "" {
			texts = append(texts, t)
		}
	}
	res.Text = strings.Join(texts, " ")

	if v, _, ok := PrimaryNumber(fragments); ok {
		res.Number = &v
	}
	return res
}

func (r *Reader) fail(err error, img image.Image) error {
	wrapped := errors.New(err).
		Component("ocr").
		Category(errors.CategoryOCR).
		Context("engine", r.EngineName()).
		Context("region_size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy())).
		Build()
	r.log.Warn("OCR read failed",
		logger.String("engine", r.EngineName()),
		logger.Error(err))
	return wrapped
}

// Close releases the engine
func (r *Reader) Close() error {
	if r.engine == nil {
		return nil
	}
	return r.engine.Close()
}
