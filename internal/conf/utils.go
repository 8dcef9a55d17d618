// conf/utils.go path helpers for the configuration package
package conf

import (
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/iconscan/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// When one of them already holds a config.yaml only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			".",
			filepath.Join(homeDir, "AppData", "Roaming", "iconscan"),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", "iconscan"),
			"/etc/iconscan",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// ScaleFactors expands the matching scale settings into the ordered list of
// factors tried by the matcher. Factors are rounded to 3 decimals so that a
// 0.1 step yields exactly 0.8, 0.9, 1.0, 1.1, 1.2.
func (m *MatchingSettings) ScaleFactors() []float64 {
	if !m.MultiScale {
		return []float64{1.0}
	}

	sc := m.Scales
	if sc.Step <= 0 || sc.Max <= sc.Min {
		return []float64{roundScale(sc.Min)}
	}

	n := int(math.Floor((sc.Max-sc.Min)/sc.Step+scaleCountTolerance)) + 1
	n = min(n, MaxScaleCount)

	factors := make([]float64, 0, n)
	for i := range n {
		factors = append(factors, roundScale(sc.Min+float64(i)*sc.Step))
	}
	return factors
}

func roundScale(f float64) float64 {
	return math.Round(f*1000) / 1000
}
