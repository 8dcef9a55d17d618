// Package pipeline runs one screenshot at a time through matching,
// suppression, text extraction and persistence.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/tphakala/iconscan/internal/datastore"
	"github.com/tphakala/iconscan/internal/detector"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/observability/metrics"
	"github.com/tphakala/iconscan/internal/ocr"
	"github.com/tphakala/iconscan/internal/templates"
	"github.com/tphakala/iconscan/internal/visualize"
)

// Overlay renders accepted detections for a screenshot
type Overlay interface {
	Write(img image.Image, sourcePath string, marks []visualize.Mark) (string, error)
}

// Config controls a Pipeline
type Config struct {
	Direction    detector.Direction
	RegionWidth  int
	RegionHeight int
	MaxWidth     int
	MaxHeight    int
	Note         string
	RunID        string  // generated when empty
	Overlay      Overlay // nil disables visualization
	Metrics      metrics.Recorder
	Logger       logger.Logger
}

// Pipeline processes screenshots against a loaded template set
type Pipeline struct {
	detector *detector.Detector
	reader   *ocr.Reader
	store    datastore.Interface
	cfg      Config
	metrics  metrics.Recorder
	log      logger.Logger
}

// New creates a Pipeline. The detector, reader and store are owned by the
// caller and must outlive the pipeline.
func New(det *detector.Detector, reader *ocr.Reader, store datastore.Interface, cfg Config) *Pipeline {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Direction == "" {
		cfg.Direction = detector.Right
	}
	p := &Pipeline{
		detector: det,
		reader:   reader,
		store:    store,
		cfg:      cfg,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
	if p.metrics == nil {
		p.metrics = metrics.NoOpRecorder{}
	}
	if p.log == nil {
		p.log = logger.Global().Module("pipeline")
	}
	return p
}

// RunID returns the id stamped on every detection of this pipeline
func (p *Pipeline) RunID() string {
	return p.cfg.RunID
}

// Run processes paths in order. A failing image is reported and the batch
// continues; only cancellation stops it early.
func (p *Pipeline) Run(ctx context.Context, paths []string, set *templates.Set) *BatchReport {
	start := time.Now()
	batch := &BatchReport{RunID: p.cfg.RunID}

	for _, path := range paths {
		if ctx.Err() != nil {
			p.log.Warn("batch cancelled",
				logger.Int("remaining", len(paths)-len(batch.Images)))
			break
		}
		report, _ := p.ProcessImage(ctx, path, set)
		batch.Images = append(batch.Images, report)
	}

	batch.Duration = time.Since(start)
	p.log.Info("batch complete",
		logger.String("run_id", batch.RunID),
		logger.Int("processed", batch.Processed()),
		logger.Int("failed", batch.Failed()),
		logger.Int("detections", batch.Detections()),
		logger.Duration("duration", batch.Duration))
	return batch
}

// ProcessImage runs one screenshot to completion. Input and persistence
// errors abort the image and are returned; template and OCR problems are
// counted in the report. The report is never nil.
func (p *Pipeline) ProcessImage(ctx context.Context, path string, set *templates.Set) (report *ImageReport, err error) {
	start := time.Now()
	report = &ImageReport{Path: path}
	log := p.log.With(logger.String("path", path))

	defer func() {
		report.Duration = time.Since(start)
		report.Err = err
		p.metrics.RecordDuration(metrics.OpImage, report.Duration.Seconds())
		if err != nil {
			p.metrics.RecordOperation(metrics.OpImage, metrics.StatusError)
			p.metrics.RecordError(metrics.OpImage, errorType(err))
			log.Error("image processing failed", logger.Error(err))
			return
		}
		p.metrics.RecordOperation(metrics.OpImage, metrics.StatusSuccess)
	}()

	if set == nil || set.Len() == 0 {
		return report, errors.New(errors.ErrEmptyTemplateSet).
			Component("pipeline").
			Category(errors.CategoryTemplate).
			Build()
	}

	src, processed, factor, err := p.load(path)
	if err != nil {
		return report, err
	}
	source := Source{Path: path, Bounds: src.Bounds(), Factor: factor}
	report.Width, report.Height, report.Factor = src.Bounds().Dx(), src.Bounds().Dy(), factor

	matchStart := time.Now()
	shot := p.detector.Matcher().ScreenshotPlane(processed)
	result, err := p.detector.Detect(ctx, shot, set.References)
	p.metrics.RecordDuration(metrics.OpMatch, time.Since(matchStart).Seconds())
	if err != nil {
		return report, err
	}

	report.RawCandidates = result.RawCandidates
	report.TemplatesSkipped = result.Skipped()
	report.TemplatesMatched = len(result.Templates) - report.TemplatesSkipped
	p.metrics.RecordCount(metrics.OpCandidates, result.RawCandidates)
	p.metrics.RecordCount(metrics.OpTemplateSkipped, report.TemplatesSkipped)

	meta := Meta{RunID: p.cfg.RunID, Note: p.cfg.Note, Timestamp: time.Now()}
	var (
		records []datastore.Record
		marks   []visualize.Mark
	)
	for _, tr := range result.Templates {
		tmpl, ok := set.Template(tr.Reference.ID)
		if !ok {
			log.Warn("detections for unknown template dropped",
				logger.Uint64("template_id", uint64(tr.Reference.ID)))
			continue
		}
		for _, c := range tr.Detections {
			box := SourceBox(c, source)
			region := detector.RegionFor(box, p.cfg.RegionWidth, p.cfg.RegionHeight, p.cfg.Direction, source.Bounds)
			read := p.read(ctx, src, region, report)

			rec := Assemble(tmpl, c, box, read, source, meta)
			records = append(records, rec)
			marks = append(marks, visualize.Mark{
				Box:        box,
				Region:     region,
				Name:       tmpl.Name,
				Similarity: c.Similarity,
				Value:      rec.Detection.Value,
			})
		}
	}

	persistStart := time.Now()
	saved, err := p.store.SaveImageResults(ctx, records)
	p.metrics.RecordDuration(metrics.OpPersist, time.Since(persistStart).Seconds())
	if err != nil {
		p.metrics.RecordOperation(metrics.OpPersist, metrics.StatusError)
		return report, err
	}
	p.metrics.RecordOperation(metrics.OpPersist, metrics.StatusSuccess)
	report.Detections = saved
	p.metrics.RecordCount(metrics.OpDetections, len(saved))

	if p.cfg.Overlay != nil {
		p.writeOverlay(src, path, marks, report)
	}

	log.Info("image processed",
		logger.Int("templates_matched", report.TemplatesMatched),
		logger.Int("templates_skipped", report.TemplatesSkipped),
		logger.Int("raw_candidates", report.RawCandidates),
		logger.Int("detections", report.Persisted()),
		logger.Int("ocr_failures", report.OCRFailures),
		logger.Int("empty_regions", report.EmptyRegions),
		logger.Int("without_value", report.WithoutValue),
		logger.Duration("duration", time.Since(start)))
	return report, nil
}

// load decodes the screenshot and bounds it to the configured maximum size.
// The source image is normalized to a zero origin.
func (p *Pipeline) load(path string) (src, processed image.Image, factor float64, err error) {
	decodeStart := time.Now()
	defer func() {
		p.metrics.RecordDuration(metrics.OpDecode, time.Since(decodeStart).Seconds())
	}()

	src, err = imageutil.Load(path)
	if err != nil {
		return nil, nil, 0, err
	}
	if src.Bounds().Min != (image.Point{}) {
		src = imaging.Clone(src)
	}

	processed, factor = src, 1.0
	if p.cfg.MaxWidth > 0 && p.cfg.MaxHeight > 0 {
		processed, factor = imageutil.FitWithin(src, p.cfg.MaxWidth, p.cfg.MaxHeight)
	}
	if factor != 1 {
		p.log.Debug("screenshot downscaled",
			logger.String("path", path),
			logger.Int("width", processed.Bounds().Dx()),
			logger.Int("height", processed.Bounds().Dy()),
			logger.Float64("factor", factor))
	}
	return src, processed, factor, nil
}

// read runs OCR on the search region of the source image and counts the
// outcome in report.
func (p *Pipeline) read(ctx context.Context, src image.Image, region image.Rectangle, report *ImageReport) ocr.Result {
	if region.Empty() {
		report.EmptyRegions++
		report.WithoutValue++
		p.metrics.RecordOperation(metrics.OpOCR, metrics.StatusEmptyRegion)
		return ocr.Result{Engine: p.reader.EngineName()}
	}

	res := p.reader.Read(ctx, imaging.Crop(src, region))
	p.metrics.RecordDuration(metrics.OpOCR, res.Duration.Seconds())

	switch {
	case res.Failed:
		report.OCRFailures++
		report.WithoutValue++
		p.metrics.RecordOperation(metrics.OpOCR, metrics.StatusFailed)
		p.metrics.RecordError(metrics.OpOCR, errorType(res.Err))
	case !res.HasValue():
		report.WithoutValue++
		p.metrics.RecordOperation(metrics.OpOCR, metrics.StatusNoValue)
	default:
		p.metrics.RecordOperation(metrics.OpOCR, metrics.StatusValue)
	}
	return res
}

// writeOverlay renders the detections; failures are logged, never fatal
func (p *Pipeline) writeOverlay(src image.Image, path string, marks []visualize.Mark, report *ImageReport) {
	start := time.Now()
	out, err := p.cfg.Overlay.Write(src, path, marks)
	p.metrics.RecordDuration(metrics.OpVisualize, time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordOperation(metrics.OpVisualize, metrics.StatusError)
		p.log.Warn("overlay not written",
			logger.String("path", path),
			logger.Error(err))
		return
	}
	p.metrics.RecordOperation(metrics.OpVisualize, metrics.StatusSuccess)
	report.OverlayPath = out
}

// errorType returns the error category used as metric label
func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.ErrorCategory())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(errors.CategoryCancellation)
	}
	return string(errors.CategoryGeneric)
}
