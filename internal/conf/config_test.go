package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper isolates tests from the package-level viper instance.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, "debug: false\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, s.Matching.Threshold, 1e-9)
	assert.True(t, s.Matching.MultiScale)
	assert.InDelta(t, 0.3, s.Matching.Overlap, 1e-9)
	assert.Equal(t, EngineAuto, s.OCR.Engine)
	assert.Equal(t, "en", s.OCR.Language)
	assert.Equal(t, 100, s.OCR.SearchRegion.Width)
	assert.Equal(t, 50, s.OCR.SearchRegion.Height)
	assert.Equal(t, DirectionRight, s.OCR.Direction)
	assert.Equal(t, 30*time.Second, s.OCR.Neural.Timeout)
	assert.Equal(t, 1920, s.Processing.MaxWidth)
	assert.Equal(t, 1080, s.Processing.MaxHeight)
	assert.Equal(t, "data/processed", s.Processing.VisualizationDir)
	assert.Equal(t, DatabaseSQLite, s.Database.Type)
	assert.Equal(t, "data/iconscan.db", s.Database.SQLite.Path)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	assert.Equal(t, path, ConfigFileUsed())
	assert.Same(t, s, GetSettings())
}

func TestLoadOverridesAndNormalization(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, `
matching:
  threshold: 0.9
  multiscale: false
ocr:
  engine: Local
  direction: " LEFT "
processing:
  extensions: [PNG, ".Jpg"]
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, s.Matching.Threshold, 1e-9)
	assert.Equal(t, []float64{1.0}, s.Matching.ScaleFactors())
	assert.Equal(t, EngineLocal, s.OCR.Engine)
	assert.Equal(t, DirectionLeft, s.OCR.Direction)
	assert.Equal(t, []string{".png", ".jpg"}, s.Processing.Extensions)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("ICONSCAN_MATCHING_THRESHOLD", "0.75")
	t.Setenv("ICONSCAN_OCR_ENGINE", "neural")
	path := writeConfig(t, "matching:\n  threshold: 0.9\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, s.Matching.Threshold, 1e-9)
	assert.Equal(t, EngineNeural, s.OCR.Engine)
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	s, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.InDelta(t, 0.8, s.Matching.Threshold, 1e-9)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, `
matching:
  threshold: 1.5
ocr:
  engine: cloud
  direction: diagonal
  searchregion:
    width: 0
database:
  type: postgres
`)

	_, err := Load(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 5)
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Matching: MatchingSettings{
				Threshold: 0.8, MultiScale: true, Overlap: 0.3, MaxCandidates: 100, Workers: 1,
				Scales: ScaleRange{Min: 0.8, Max: 1.2, Step: 0.1},
			},
			OCR: OCRSettings{
				Engine: EngineAuto, Language: "en", Direction: DirectionRight,
				SearchRegion: SearchRegionSettings{Width: 100, Height: 50},
				Neural:       NeuralSettings{Endpoint: "http://127.0.0.1:8866", Timeout: time.Second},
			},
			Processing: ProcessingSettings{MaxWidth: 1920, MaxHeight: 1080, Extensions: []string{".png"}},
			Templates:  TemplateSettings{Dir: "data/templates"},
			Database:   DatabaseSettings{Type: DatabaseSQLite, SQLite: SQLiteSettings{Path: "x.db"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
		ok     bool
	}{
		{"valid", func(*Settings) {}, true},
		{"zero threshold", func(s *Settings) { s.Matching.Threshold = 0 }, false},
		{"too many scales", func(s *Settings) { s.Matching.Scales = ScaleRange{Min: 0.5, Max: 3.0, Step: 0.01} }, false},
		{"inverted scales", func(s *Settings) { s.Matching.Scales = ScaleRange{Min: 1.2, Max: 0.8, Step: 0.1} }, false},
		{"single scale ignores step", func(s *Settings) { s.Matching.Scales = ScaleRange{Min: 1, Max: 1} }, true},
		{"huge search region", func(s *Settings) { s.OCR.SearchRegion.Width = MaxSearchRegionSide + 1 }, false},
		{"neural bad endpoint", func(s *Settings) { s.OCR.Engine = EngineNeural; s.OCR.Neural.Endpoint = "::" }, false},
		{"mysql missing user", func(s *Settings) { s.Database.Type = DatabaseMySQL; s.Database.MySQL.Port = 3306 }, false},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, false},
		{"visualize without dir", func(s *Settings) { s.Processing.Visualize = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestScaleFactors(t *testing.T) {
	tests := []struct {
		name string
		m    MatchingSettings
		want []float64
	}{
		{"default", MatchingSettings{MultiScale: true, Scales: ScaleRange{Min: 0.8, Max: 1.2, Step: 0.1}}, []float64{0.8, 0.9, 1.0, 1.1, 1.2}},
		{"disabled", MatchingSettings{MultiScale: false, Scales: ScaleRange{Min: 0.8, Max: 1.2, Step: 0.1}}, []float64{1.0}},
		{"uneven end", MatchingSettings{MultiScale: true, Scales: ScaleRange{Min: 0.5, Max: 1.0, Step: 0.2}}, []float64{0.5, 0.7, 0.9}},
		{"single", MatchingSettings{MultiScale: true, Scales: ScaleRange{Min: 1.0, Max: 1.0}}, []float64{1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.ScaleFactors())
		})
	}
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, "ocr:\n  direction: bottom\n")
	s, err := Load(path)
	require.NoError(t, err)

	s.Matching.Threshold = 0.85
	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(out, s))

	viper.Reset()
	reloaded, err := Load(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, reloaded.Matching.Threshold, 1e-9)
	assert.Equal(t, DirectionBottom, reloaded.OCR.Direction)
}
