// conf/validate.go

package conf

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"
)

// Bounds that keep a single match or read call from running unbounded
const (
	MaxScaleCount        = 21
	MaxSearchRegionSide  = 2000
	MaxImageSide         = 8192
	minScaleFactor       = 0.1
	maxScaleFactor       = 4.0
	scaleCountTolerance  = 1e-6
	supportedLanguageLen = 2
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateMatchingSettings,
		validateOCRSettings,
		validateProcessingSettings,
		validateTemplateSettings,
		validateDatabaseSettings,
		validateTelemetrySettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMatchingSettings(s *Settings) []string {
	var errs []string
	m := &s.Matching

	if m.Threshold <= 0 || m.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("matching.threshold must be in (0, 1], got %v", m.Threshold))
	}
	if m.Overlap <= 0 || m.Overlap >= 1 {
		errs = append(errs, fmt.Sprintf("matching.overlap must be in (0, 1), got %v", m.Overlap))
	}
	if m.MaxCandidates <= 0 {
		errs = append(errs, "matching.maxcandidates must be positive")
	}
	if m.Workers < 0 {
		errs = append(errs, "matching.workers must not be negative")
	}
	if m.BlurSigma < 0 {
		errs = append(errs, "matching.blursigma must not be negative")
	}

	if m.MultiScale {
		sc := m.Scales
		switch {
		case sc.Min < minScaleFactor || sc.Max > maxScaleFactor:
			errs = append(errs, fmt.Sprintf("matching.scales must lie within [%v, %v]", minScaleFactor, maxScaleFactor))
		case sc.Max < sc.Min:
			errs = append(errs, "matching.scales.max must be greater than or equal to min")
		case sc.Step <= 0 && sc.Max > sc.Min:
			errs = append(errs, "matching.scales.step must be positive")
		case sc.Step > 0 && math.Floor((sc.Max-sc.Min)/sc.Step+scaleCountTolerance)+1 > MaxScaleCount:
			errs = append(errs, fmt.Sprintf("matching.scales yields more than %d factors", MaxScaleCount))
		}
	}

	return errs
}

func validateOCRSettings(s *Settings) []string {
	var errs []string
	o := &s.OCR

	if !slices.Contains([]string{EngineAuto, EngineLocal, EngineNeural}, o.Engine) {
		errs = append(errs, fmt.Sprintf("ocr.engine must be one of auto, local, neural, got %q", o.Engine))
	}
	if len(o.Language) != supportedLanguageLen {
		errs = append(errs, fmt.Sprintf("ocr.language must be a two letter language code, got %q", o.Language))
	}
	if !slices.Contains([]string{DirectionRight, DirectionLeft, DirectionTop, DirectionBottom}, o.Direction) {
		errs = append(errs, fmt.Sprintf("ocr.direction must be one of right, left, top, bottom, got %q", o.Direction))
	}
	if o.SearchRegion.Width <= 0 || o.SearchRegion.Height <= 0 ||
		o.SearchRegion.Width > MaxSearchRegionSide || o.SearchRegion.Height > MaxSearchRegionSide {
		errs = append(errs, fmt.Sprintf("ocr.searchregion must be between 1 and %d pixels per side", MaxSearchRegionSide))
	}

	if o.Engine == EngineNeural || o.Engine == EngineAuto {
		if u, err := url.Parse(o.Neural.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			if o.Engine == EngineNeural {
				errs = append(errs, fmt.Sprintf("ocr.neural.endpoint is not a valid URL: %q", o.Neural.Endpoint))
			}
		}
		if o.Neural.Timeout <= 0 {
			errs = append(errs, "ocr.neural.timeout must be positive")
		}
		if o.Neural.RateLimit < 0 {
			errs = append(errs, "ocr.neural.ratelimit must not be negative")
		}
	}

	return errs
}

func validateProcessingSettings(s *Settings) []string {
	var errs []string
	p := &s.Processing

	if p.MaxWidth <= 0 || p.MaxHeight <= 0 || p.MaxWidth > MaxImageSide || p.MaxHeight > MaxImageSide {
		errs = append(errs, fmt.Sprintf("processing.maxwidth and maxheight must be between 1 and %d", MaxImageSide))
	}
	if p.Visualize && strings.TrimSpace(p.VisualizationDir) == "" {
		errs = append(errs, "processing.visualizationdir is required when visualize is enabled")
	}
	if len(p.Extensions) == 0 {
		errs = append(errs, "processing.extensions must list at least one extension")
	}

	return errs
}

func validateTemplateSettings(s *Settings) []string {
	if strings.TrimSpace(s.Templates.Dir) == "" {
		return []string{"templates.dir is required"}
	}
	return nil
}

func validateDatabaseSettings(s *Settings) []string {
	var errs []string
	d := &s.Database

	switch d.Type {
	case DatabaseSQLite:
		if strings.TrimSpace(d.SQLite.Path) == "" {
			errs = append(errs, "database.sqlite.path is required")
		}
	case DatabaseMySQL:
		if d.MySQL.Host == "" || d.MySQL.Database == "" || d.MySQL.Username == "" {
			errs = append(errs, "database.mysql requires host, database and username")
		}
		if d.MySQL.Port <= 0 || d.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.mysql.port is out of range: %d", d.MySQL.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type must be sqlite or mysql, got %q", d.Type))
	}

	return errs
}

func validateTelemetrySettings(s *Settings) []string {
	if s.Telemetry.Enabled && strings.TrimSpace(s.Telemetry.DSN) == "" {
		return []string{"telemetry.dsn is required when telemetry is enabled"}
	}
	return nil
}
