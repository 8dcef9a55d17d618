package templates

import (
	"context"
	"image"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/logger"
)

// DefaultManifest is the manifest file looked up in an imported directory
const DefaultManifest = "templates.yaml"

// ManifestEntry overrides the derived metadata of one file. File is relative
// to the imported directory and uses forward slashes.
type ManifestEntry struct {
	File      string  `yaml:"file"`
	Name      string  `yaml:"name,omitempty"`
	Category  string  `yaml:"category,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

// Manifest is the templates.yaml document
type Manifest struct {
	Templates []ManifestEntry `yaml:"templates"`
}

// ImportResult summarizes a directory import
type ImportResult struct {
	Created int
	Updated int
	Failed  []string // relative paths that could not be registered
}

// LoadManifest reads a manifest file. A missing file yields an empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, errors.New(err).
			Component("templates").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Build()
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New(err).
			Component("templates").
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_manifest").
			FileContext(path).
			Build()
	}
	return &m, nil
}

// lookup returns the manifest entry for a relative path
func (m *Manifest) lookup(rel string) (ManifestEntry, bool) {
	for _, e := range m.Templates {
		if filepath.ToSlash(filepath.Clean(e.File)) == rel {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// ImportDir registers every supported image below dir. A file whose
// fingerprint is already registered keeps its stored name, category and
// threshold. New files are named after the file stem and categorized by
// their parent directory (DefaultCategory for files at the root). Manifest
// entries override both. Files that fail to register are logged and counted;
// the import continues.
func (s *Store) ImportDir(ctx context.Context, dir, manifestName string) (*ImportResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.New(err).
			Component("templates").
			Category(errors.CategoryFileIO).
			FileContext(dir).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.Newf("%s is not a directory", dir).
			Component("templates").
			Category(errors.CategoryValidation).
			Build()
	}

	if manifestName == "" {
		manifestName = DefaultManifest
	}
	manifest, err := LoadManifest(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}

	files, err := s.imageFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		file := filepath.Join(dir, filepath.FromSlash(rel))
		entry, _ := manifest.lookup(rel)
		var created bool
		img, err := imageutil.Load(file)
		if err == nil {
			opts := s.importOptions(ctx, img, rel, entry)
			opts.SourcePath = file
			_, created, err = s.Register(ctx, img, opts)
		}

		switch {
		case err != nil:
			s.log.Warn("template import failed",
				logger.String("file", rel),
				logger.Error(err))
			result.Failed = append(result.Failed, rel)
		case created:
			result.Created++
		default:
			result.Updated++
		}
	}

	s.log.Info("template directory imported",
		logger.String("dir", dir),
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("failed", len(result.Failed)))
	return result, nil
}

// imageFiles lists supported images below dir as sorted slash-separated
// relative paths.
func (s *Store) imageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !s.supported(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("templates").
			Category(errors.CategoryFileIO).
			FileContext(dir).
			Build()
	}
	slices.Sort(files)
	return files, nil
}

func (s *Store) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(s.cfg.Extensions) == 0 {
		return ext == ".png"
	}
	return slices.Contains(s.cfg.Extensions, ext)
}

// importOptions resolves the registration metadata of one imported file
func (s *Store) importOptions(ctx context.Context, img image.Image, rel string, entry ManifestEntry) RegisterOptions {
	opts := RegisterOptions{Name: stem(rel), Category: categoryOf(rel)}

	existing, err := s.db.GetTemplateByFingerprint(ctx, imageutil.Fingerprint(img))
	switch {
	case err == nil:
		opts = RegisterOptions{Name: existing.Name, Category: existing.Category, Threshold: existing.Threshold}
	case !errors.IsNotFound(err):
		s.log.Warn("template lookup failed, using derived metadata",
			logger.String("file", rel),
			logger.Error(err))
	}

	if entry.Name != "" {
		opts.Name = entry.Name
	}
	if entry.Category != "" {
		opts.Category = entry.Category
	}
	if entry.Threshold > 0 {
		opts.Threshold = entry.Threshold
	}
	return opts
}

// categoryOf returns the immediate parent directory of a relative path
func categoryOf(rel string) string {
	parent := path.Dir(rel)
	if parent == "." {
		return DefaultCategory
	}
	return path.Base(parent)
}
