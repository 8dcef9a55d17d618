// config.go: settings struct for iconscan and functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Direction values for the OCR search region
const (
	DirectionRight  = "right"
	DirectionLeft   = "left"
	DirectionTop    = "top"
	DirectionBottom = "bottom"
)

// OCR engine selection values
const (
	EngineAuto   = "auto"
	EngineLocal  = "local"
	EngineNeural = "neural"
)

// Database backends
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// ScaleRange describes the multiplicative factors tried by the matcher
type ScaleRange struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// MatchingSettings controls template matching and suppression
type MatchingSettings struct {
	Threshold     float64    `yaml:"threshold"`     // default acceptance threshold for new templates
	MultiScale    bool       `yaml:"multiscale"`    // false matches at scale 1.0 only
	Scales        ScaleRange `yaml:"scales"`        // scale factors when multiscale is enabled
	Overlap       float64    `yaml:"overlap"`       // IoU above which NMS discards a candidate
	MaxCandidates int        `yaml:"maxcandidates"` // per template raw candidate cap
	Workers       int        `yaml:"workers"`       // 0 = GOMAXPROCS, 1 = sequential
	BlurSigma     float64    `yaml:"blursigma"`     // gaussian blur before matching, 0 disables
}

// SearchRegionSettings is the size of the rectangle scanned for text
type SearchRegionSettings struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TesseractSettings configures the local OCR engine
type TesseractSettings struct {
	Whitelist string `yaml:"whitelist"` // restrict recognized characters, empty allows all
}

// NeuralSettings configures the neural OCR inference server client
type NeuralSettings struct {
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cachettl"`
	RateLimit float64       `yaml:"ratelimit"` // requests per second, 0 disables
}

// OCRSettings controls text and number extraction
type OCRSettings struct {
	Engine       string               `yaml:"engine"`   // auto, local or neural
	Language     string               `yaml:"language"` // ISO 639-1 code
	Preprocess   bool                 `yaml:"preprocess"`
	SearchRegion SearchRegionSettings `yaml:"searchregion"`
	Direction    string               `yaml:"direction"` // right, left, top or bottom
	Tesseract    TesseractSettings    `yaml:"tesseract"`
	Neural       NeuralSettings       `yaml:"neural"`
}

// ProcessingSettings controls screenshot handling
type ProcessingSettings struct {
	MaxWidth         int      `yaml:"maxwidth"`
	MaxHeight        int      `yaml:"maxheight"`
	Visualize        bool     `yaml:"visualize"`
	VisualizationDir string   `yaml:"visualizationdir"`
	Extensions       []string `yaml:"extensions"`
}

// TemplateSettings locates reference icon images
type TemplateSettings struct {
	Dir      string `yaml:"dir"`
	Manifest string `yaml:"manifest"`
}

// SQLiteSettings for the embedded database
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings for a server database
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseSettings selects and configures the persistence backend
type DatabaseSettings struct {
	Type   string         `yaml:"type"`
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// MetricsSettings controls Prometheus metric export
type MetricsSettings struct {
	TextFile string `yaml:"textfile"` // node-exporter textfile path, empty disables
}

// TelemetrySettings controls optional error reporting
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains every recognized configuration field
type Settings struct {
	Debug      bool                 `yaml:"debug"`
	Matching   MatchingSettings     `yaml:"matching"`
	OCR        OCRSettings          `yaml:"ocr"`
	Processing ProcessingSettings   `yaml:"processing"`
	Templates  TemplateSettings     `yaml:"templates"`
	Database   DatabaseSettings     `yaml:"database"`
	Logging    logger.LoggingConfig `yaml:"logging"`
	Metrics    MetricsSettings      `yaml:"metrics"`
	Telemetry  TelemetrySettings    `yaml:"telemetry"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFileUsed   string
)

// Load reads the configuration file and environment variables into Settings.
// An empty configFile searches the default config paths; when no file is
// found a default config.yaml is written and loaded.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	normalizeSettings(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	configFileUsed = viper.ConfigFileUsed()
	settingsInstance = settings
	return settingsInstance, nil
}

func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("ICONSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return createDefaultConfig(configFile)
		}
		return readConfig()
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(filepath.Join(configPaths[0], "config.yaml"))
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

func readConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", viper.ConfigFileUsed()).
			Build()
	}
	return nil
}

// createDefaultConfig writes the embedded default config to configPath and reads it
func createDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			FileContext(configPath).
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return readConfig()
}

// normalizeSettings canonicalizes enumerated string values before validation
func normalizeSettings(s *Settings) {
	s.OCR.Engine = strings.ToLower(strings.TrimSpace(s.OCR.Engine))
	s.OCR.Direction = strings.ToLower(strings.TrimSpace(s.OCR.Direction))
	s.Database.Type = strings.ToLower(strings.TrimSpace(s.Database.Type))
	for i, ext := range s.Processing.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.Processing.Extensions[i] = ext
	}
	if s.Debug && s.Logging.DefaultLevel != "trace" {
		s.Logging.DefaultLevel = "debug"
		if s.Logging.Console != nil {
			s.Logging.Console.Level = "debug"
		}
	}
}

// GetSettings returns the settings loaded by the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path of the config file read by Load
func ConfigFileUsed() string {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return configFileUsed
}

// SaveYAMLConfig writes settings to configPath through a temporary file so a
// crash never leaves a truncated config behind.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "save_config").
			FileContext(configPath).
			Build()
	}

	return nil
}
