// Package analysis wires configuration into the screenshot pipeline and owns
// the lifetime of the database, OCR engine and metrics of one command.
package analysis

import (
	"context"
	"fmt"
	"os"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/datastore"
	"github.com/tphakala/iconscan/internal/detector"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/observability"
	"github.com/tphakala/iconscan/internal/ocr"
	"github.com/tphakala/iconscan/internal/pipeline"
	"github.com/tphakala/iconscan/internal/templates"
	"github.com/tphakala/iconscan/internal/visualize"
)

// ErrAnalysisCanceled wraps the context error of an interrupted batch
var ErrAnalysisCanceled = errors.NewStd("analysis canceled")

// App holds the long lived resources shared by the commands
type App struct {
	Settings  *conf.Settings
	Store     datastore.Interface
	Templates *templates.Store
	Metrics   *observability.Metrics
	log       logger.Logger
}

// ProcessOptions adjust a batch run
type ProcessOptions struct {
	Recursive       bool
	NoVisualization bool
	Note            string
	Backends        []ocr.Backend // nil uses OCRBackends
}

// Open connects the datastore and prepares the template store and metrics.
// The caller must Close the App.
func Open(settings *conf.Settings) (*App, error) {
	log := logger.Global().Module("analysis")

	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		_ = store.Close()
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}

	return &App{
		Settings: settings,
		Store:    store,
		Templates: templates.New(store, templates.Config{
			Dir:              settings.Templates.Dir,
			DefaultThreshold: settings.Matching.Threshold,
			Extensions:       settings.Processing.Extensions,
			Logger:           logger.Global().Module("templates"),
		}),
		Metrics: m,
		log:     log,
	}, nil
}

// Close writes the metrics textfile when configured and closes the datastore
func (a *App) Close() error {
	var errs []error
	if path := a.Settings.Metrics.TextFile; path != "" {
		if err := a.Metrics.WriteToTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ImportTemplateDir registers the configured template directory when it exists
func (a *App) ImportTemplateDir(ctx context.Context) error {
	dir := a.Settings.Templates.Dir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		a.log.Debug("template directory does not exist, skipping import", logger.String("dir", dir))
		return nil
	}
	_, err := a.Templates.ImportDir(ctx, dir, a.Settings.Templates.Manifest)
	return err
}

// Process runs the batch pipeline over inputs. Templates are imported from
// the template directory and loaded first; an empty template set fails the
// run before any image is read. Per-image failures are recorded in the
// report, not returned.
func (a *App) Process(ctx context.Context, inputs []string, opts ProcessOptions) (*pipeline.BatchReport, error) {
	s := a.Settings

	if err := a.ImportTemplateDir(ctx); err != nil {
		a.log.Warn("template directory import failed", logger.Error(err))
	}
	set, err := a.Templates.Load(ctx)
	if err != nil {
		return nil, err
	}

	paths, err := CollectImages(inputs, opts.Recursive, s.Processing.Extensions)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Newf("no images found in %v", inputs).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	direction, err := detector.ParseDirection(s.OCR.Direction)
	if err != nil {
		return nil, err
	}

	backends := opts.Backends
	if backends == nil {
		backends = OCRBackends(ctx, s, logger.Global().Module("ocr"))
	}
	engine, err := ocr.Select(s.OCR.Engine, backends, logger.Global().Module("ocr"))
	if err != nil {
		return nil, err
	}
	reader := ocr.NewReader(engine, ocr.ReaderConfig{
		Preprocess: s.OCR.Preprocess,
		Logger:     logger.Global().Module("ocr"),
	})
	defer func() {
		if err := reader.Close(); err != nil {
			a.log.Warn("closing OCR engine failed", logger.Error(err))
		}
	}()

	det := detector.New(detector.Config{
		Scales:        s.Matching.ScaleFactors(),
		Overlap:       s.Matching.Overlap,
		Workers:       s.Matching.Workers,
		BlurSigma:     s.Matching.BlurSigma,
		MaxCandidates: s.Matching.MaxCandidates,
		Logger:        logger.Global().Module("detector"),
	})

	cfg := pipeline.Config{
		Direction:    direction,
		RegionWidth:  s.OCR.SearchRegion.Width,
		RegionHeight: s.OCR.SearchRegion.Height,
		MaxWidth:     s.Processing.MaxWidth,
		MaxHeight:    s.Processing.MaxHeight,
		Note:         opts.Note,
		Metrics:      a.Metrics.Pipeline,
		Logger:       logger.Global().Module("pipeline"),
	}
	if s.Processing.Visualize && !opts.NoVisualization {
		cfg.Overlay = visualize.NewWriter(s.Processing.VisualizationDir, logger.Global().Module("visualize"))
	}

	p := pipeline.New(det, reader, a.Store, cfg)
	a.log.Info("processing started",
		logger.String("run_id", p.RunID()),
		logger.Int("images", len(paths)),
		logger.Int("templates", set.Len()),
		logger.String("ocr_engine", reader.EngineName()))

	batch := p.Run(ctx, paths, set)
	if ctx.Err() != nil {
		return batch, fmt.Errorf("%w: %w", ErrAnalysisCanceled, ctx.Err())
	}
	return batch, nil
}

// With opens an App, runs fn and closes the App. A close error is returned
// when fn succeeded.
func With(ctx context.Context, settings *conf.Settings, fn func(ctx context.Context, app *App) error) (err error) {
	app, err := Open(settings)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, app)
}
