package logger

// LoggingConfig is the logging section of config.yaml
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"default_level"`
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"` // Local, UTC or an IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console"`
	FileOutput   *FileOutput       `yaml:"file_output" mapstructure:"file_output"`
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels"` // e.g. datastore: trace
}

// ConsoleOutput writes text records to stderr
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput appends JSON records to a file
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"`
}

const (
	DefaultLogLevel = "info"
	DefaultLogPath  = "logs/iconscan.log"
)

func (c *LoggingConfig) withDefaults() {
	if c.DefaultLevel == "" {
		c.DefaultLevel = DefaultLogLevel
	}
	if c.Console == nil {
		c.Console = &ConsoleOutput{Enabled: true, Level: c.DefaultLevel}
	}
	if c.FileOutput == nil {
		c.FileOutput = &FileOutput{Path: DefaultLogPath, Level: c.DefaultLevel}
	}
}
