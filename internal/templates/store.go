// Package templates manages the reference icons matched against screenshots.
// Identity is the content fingerprint: registering the same pixels again
// updates the existing template instead of creating a new one.
package templates

import (
	"context"
	"image"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tphakala/iconscan/internal/datastore"
	"github.com/tphakala/iconscan/internal/detector"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/logger"
)

// DefaultCategory is used when no category is given
const DefaultCategory = "general"

// unsafeNameChars are replaced when a template name becomes a file name
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Config configures a Store
type Config struct {
	Dir              string  // reference images are copied below Dir/<category>/
	DefaultThreshold float64 // used when a registration gives no threshold
	Extensions       []string
	Logger           logger.Logger
}

// RegisterOptions describe a template being registered
type RegisterOptions struct {
	Name       string
	Category   string
	Threshold  float64 // 0 uses the default threshold
	SourcePath string  // original file; kept as image path when already inside Dir
}

// Store registers templates and prepares them for matching
type Store struct {
	db  datastore.Interface
	cfg Config
	log logger.Logger
}

// New creates a Store backed by db
func New(db datastore.Interface, cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("templates")
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.8
	}
	return &Store{db: db, cfg: cfg, log: log}
}

// Register computes the fingerprint of img and upserts the template. The
// image is stored as PNG below the template directory unless SourcePath
// already points inside it. It returns the stored template and whether it
// was newly created.
func (s *Store) Register(ctx context.Context, img image.Image, opts RegisterOptions) (*datastore.Template, bool, error) {
	if imageutil.IsEmpty(img) {
		return nil, false, errors.New(errors.ErrInvalidImage).
			Component("templates").
			Category(errors.CategoryImageDecode).
			FileContext(opts.SourcePath).
			Build()
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, false, errors.Newf("template name is required").
			Component("templates").
			Category(errors.CategoryValidation).
			Build()
	}
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = DefaultCategory
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = s.cfg.DefaultThreshold
	}
	if threshold > 1 {
		return nil, false, errors.Newf("threshold %.3f is outside (0, 1]", threshold).
			Component("templates").
			Category(errors.CategoryValidation).
			Context("template", name).
			Build()
	}

	phash, err := imageutil.PerceptualHash(img)
	if err != nil {
		s.log.Warn("perceptual hash failed", logger.String("template", name), logger.Error(err))
	}

	t := &datastore.Template{
		Name:        name,
		Category:    category,
		Fingerprint: imageutil.Fingerprint(img),
		PHash:       phash,
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		Threshold:   threshold,
	}

	t.ImagePath, err = s.storeImage(img, opts.SourcePath, category, name)
	if err != nil {
		return nil, false, err
	}

	if phash != "" {
		s.warnNearDuplicates(ctx, t)
	}

	created, err := s.db.UpsertTemplate(ctx, t)
	if err != nil {
		return nil, false, err
	}

	s.log.Info("template registered",
		logger.String("name", t.Name),
		logger.String("category", t.Category),
		logger.String("fingerprint", t.Fingerprint[:12]),
		logger.Bool("created", created))
	return t, created, nil
}

// RegisterFile loads an image file and registers it
func (s *Store) RegisterFile(ctx context.Context, path string, opts RegisterOptions) (*datastore.Template, bool, error) {
	img, err := imageutil.Load(path)
	if err != nil {
		return nil, false, err
	}
	if opts.Name == "" {
		opts.Name = stem(path)
	}
	opts.SourcePath = path
	return s.Register(ctx, img, opts)
}

// storeImage returns the path the template image is kept at
func (s *Store) storeImage(img image.Image, sourcePath, category, name string) (string, error) {
	if sourcePath != "" && s.cfg.Dir != "" && isWithin(s.cfg.Dir, sourcePath) {
		return filepath.ToSlash(sourcePath), nil
	}
	if s.cfg.Dir == "" {
		return filepath.ToSlash(sourcePath), nil
	}

	fileName := unsafeNameChars.ReplaceAllString(name, "_") + ".png"
	target := filepath.Join(s.cfg.Dir, unsafeNameChars.ReplaceAllString(category, "_"), fileName)
	if err := imageutil.SavePNG(img, target); err != nil {
		return "", err
	}
	return filepath.ToSlash(target), nil
}

// warnNearDuplicates logs templates whose perceptual hash is close to t's
// without sharing its fingerprint.
func (s *Store) warnNearDuplicates(ctx context.Context, t *datastore.Template) {
	existing, err := s.db.GetAllTemplates(ctx)
	if err != nil {
		return
	}
	for _, e := range existing {
		if e.Fingerprint == t.Fingerprint || e.PHash == "" {
			continue
		}
		d, err := imageutil.HashDistance(e.PHash, t.PHash)
		if err != nil || d > imageutil.NearDuplicateDistance {
			continue
		}
		s.log.Warn("template looks like an existing template",
			logger.String("template", t.Name),
			logger.String("existing", e.Name),
			logger.Int("hash_distance", d))
	}
}

// All returns every template ordered by category and name
func (s *Store) All(ctx context.Context) ([]datastore.Template, error) {
	return s.db.GetAllTemplates(ctx)
}

// Set is the registered template collection prepared for one run
type Set struct {
	References []*detector.Reference
	templates  map[uint]datastore.Template
}

// Template returns the stored row behind a reference id
func (ts *Set) Template(id uint) (datastore.Template, bool) {
	t, ok := ts.templates[id]
	return t, ok
}

// Len returns the number of loaded templates
func (ts *Set) Len() int {
	return len(ts.References)
}

// Load reads every template image for matching. Templates whose image cannot
// be loaded are logged and left out. An empty result is
// errors.ErrEmptyTemplateSet.
func (s *Store) Load(ctx context.Context) (*Set, error) {
	all, err := s.db.GetAllTemplates(ctx)
	if err != nil {
		return nil, err
	}

	set := &Set{
		References: make([]*detector.Reference, 0, len(all)),
		templates:  make(map[uint]datastore.Template, len(all)),
	}
	for _, t := range all {
		img, err := imageutil.Load(filepath.FromSlash(t.ImagePath))
		if err != nil {
			s.log.Warn("template image unavailable, skipping",
				logger.String("template", t.Name),
				logger.String("path", t.ImagePath),
				logger.Error(err))
			continue
		}
		set.References = append(set.References, &detector.Reference{
			ID:        t.ID,
			Key:       t.Fingerprint,
			Name:      t.Name,
			Image:     img,
			Threshold: t.Threshold,
		})
		set.templates[t.ID] = t
	}

	if len(set.References) == 0 {
		return nil, errors.New(errors.ErrEmptyTemplateSet).
			Component("templates").
			Category(errors.CategoryTemplate).
			Context("registered", len(all)).
			Build()
	}

	s.log.Debug("templates loaded",
		logger.Int("loaded", len(set.References)),
		logger.Int("registered", len(all)))
	return set, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isWithin reports whether path lies inside dir
func isWithin(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
