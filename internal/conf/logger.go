// Package conf provides configuration management for iconscan.
package conf

import "github.com/tphakala/iconscan/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger each time because the central logger is set up after config loads.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
