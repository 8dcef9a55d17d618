package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/iconscan/cmd/config"
	"github.com/tphakala/iconscan/cmd/history"
	"github.com/tphakala/iconscan/cmd/process"
	"github.com/tphakala/iconscan/cmd/stats"
	"github.com/tphakala/iconscan/cmd/template"
	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/telemetry"
)

// Version is set at build time with -ldflags
var Version = "dev"

var (
	configFile string
	shutdown   []func()
)

// RootCommand creates and returns the root command. Settings are loaded
// into settings before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iconscan",
		Short:         "Find icons in screenshots and read the numbers next to them",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	subcommands := []*cobra.Command{
		process.Command(settings),
		template.Command(settings),
		stats.Command(settings),
		history.Command(settings),
		config.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings)
	}

	return rootCmd
}

// Shutdown flushes telemetry and closes log outputs. It is safe to call
// when initialization never ran.
func Shutdown() {
	for i := len(shutdown) - 1; i >= 0; i-- {
		shutdown[i]()
	}
	shutdown = nil
}

// initialize sets up logging and telemetry once settings are loaded
func initialize(settings *conf.Settings) error {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	shutdown = append(shutdown, func() { _ = central.Close() })

	flush, err := telemetry.Init(settings, telemetry.Options{Release: Version})
	if err != nil {
		// Error reporting is optional, the run continues without it
		central.Module("main").Warn("telemetry disabled", logger.Error(err))
	} else {
		shutdown = append(shutdown, flush)
	}

	central.Module("main").Debug("configuration loaded",
		logger.String("config_file", conf.ConfigFileUsed()),
		logger.String("version", Version))
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.Float64P("threshold", "t", 0.8, "Default acceptance threshold for new templates, 0.0 to 1.0")
	flags.String("engine", conf.EngineAuto, "OCR engine: auto, local or neural")
	flags.String("direction", conf.DirectionRight, "Side of the icon searched for text: right, left, top or bottom")

	bindings := map[string]string{
		"debug":              "debug",
		"matching.threshold": "threshold",
		"ocr.engine":         "engine",
		"ocr.direction":      "direction",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
