// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers a typed default for every settings key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("matching.threshold", 0.8)
	viper.SetDefault("matching.multiscale", true)
	viper.SetDefault("matching.scales.min", 0.8)
	viper.SetDefault("matching.scales.max", 1.2)
	viper.SetDefault("matching.scales.step", 0.1)
	viper.SetDefault("matching.overlap", 0.3)
	viper.SetDefault("matching.maxcandidates", 20000)
	viper.SetDefault("matching.workers", 1)
	viper.SetDefault("matching.blursigma", 0.8)

	viper.SetDefault("ocr.engine", EngineAuto)
	viper.SetDefault("ocr.language", "en")
	viper.SetDefault("ocr.preprocess", true)
	viper.SetDefault("ocr.searchregion.width", 100)
	viper.SetDefault("ocr.searchregion.height", 50)
	viper.SetDefault("ocr.direction", DirectionRight)
	viper.SetDefault("ocr.tesseract.whitelist", "")
	viper.SetDefault("ocr.neural.endpoint", "http://127.0.0.1:8866")
	viper.SetDefault("ocr.neural.timeout", 30*time.Second)
	viper.SetDefault("ocr.neural.cachettl", 10*time.Minute)
	viper.SetDefault("ocr.neural.ratelimit", 5.0)

	viper.SetDefault("processing.maxwidth", 1920)
	viper.SetDefault("processing.maxheight", 1080)
	viper.SetDefault("processing.visualize", true)
	viper.SetDefault("processing.visualizationdir", "data/processed")
	viper.SetDefault("processing.extensions", []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".webp"})

	viper.SetDefault("templates.dir", "data/templates")
	viper.SetDefault("templates.manifest", "templates.yaml")

	viper.SetDefault("database.type", DatabaseSQLite)
	viper.SetDefault("database.sqlite.path", "data/iconscan.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.username", "")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "iconscan")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/iconscan.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
}
