package analysis

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tphakala/iconscan/internal/errors"
)

// CollectImages expands inputs into the list of screenshots to process.
// Directories contribute their supported image files in lexical order,
// descending into subdirectories when recursive is set. Files are kept as
// given, so an unreadable file is reported by the pipeline rather than
// silently dropped.
func CollectImages(inputs []string, recursive bool, extensions []string) ([]string, error) {
	var paths []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil || !info.IsDir() {
			paths = append(paths, input)
			continue
		}

		found, err := imagesInDir(input, recursive, extensions)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func imagesInDir(dir string, recursive bool, extensions []string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isSupported(path, extensions) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			FileContext(dir).
			Build()
	}
	slices.Sort(found)
	return found, nil
}

func isSupported(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.Contains(extensions, ext)
}
