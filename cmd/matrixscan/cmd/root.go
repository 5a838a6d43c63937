package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/matrixscan/internal/config"
	"github.com/MeKo-Tech/matrixscan/internal/version"
)

// viperKeyAnnotation links a flag to the configuration key it overrides.
const viperKeyAnnotation = "matrixscan_config_key"

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
)

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Resolved configuration of the running command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "matrixscan",
	Short: "Barcode capture pipeline with live overlays",
	Long: `matrixscan finds barcodes in camera frames, keeps a duplicate-free list of
everything scanned and maps each detection onto the preview surface.

It provides:
- Offline scanning of image files with overlay rendering
- A live WebSocket scanning service with per-session barcode lists
- Review of hand-off files written at session end

Examples:
  matrixscan scan frames/ --handoff scanned.json
  matrixscan review scanned.json
  matrixscan serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "matrixscan version "+version.Get().String())
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/matrixscan, /etc/matrixscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	bindFlag(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")
}

// bindFlag marks flag name of fs as an override for the configuration key.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, viperKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// loadConfig resolves the configuration for cmd from flags, environment,
// config file and defaults. Each run uses a fresh viper instance so flags of
// one command never leak into another.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	var bindErr error
	bind := func(f *pflag.Flag) {
		if keys, ok := f.Annotations[viperKeyAnnotation]; ok && len(keys) == 1 {
			bindErr = errors.Join(bindErr, v.BindPFlag(keys[0], f))
		}
	}
	cmd.Flags().VisitAll(bind)
	if bindErr != nil {
		return nil, bindErr
	}

	loader := config.NewLoaderWithViper(v)
	cfg, err := loader.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	configLoader, globalConfig = loader, cfg
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	// Logs go to stderr so command output on stdout stays machine readable.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration resolved for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the loader of the running command.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWithViper(viper.New())
	}
	return configLoader
}
