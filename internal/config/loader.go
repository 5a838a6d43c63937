package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "matrixscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MATRIXSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoaderWithViper creates a loader on a caller-owned viper instance.
// Flags bound to v take part in resolution.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// LoadWithFile loads and validates configuration from configFile, the
// environment and defaults. An empty path searches GetConfigSearchPaths
// for matrixscan.yaml and carries on without a file when none is found.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars only
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// MATRIXSCAN_CANDIDATES_TOP_N for candidates.top_n
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("preprocess.decode_blur_kernel", d.Preprocess.DecodeBlurKernel)
	l.v.SetDefault("preprocess.decode_blur_sigma", d.Preprocess.DecodeBlurSigma)
	l.v.SetDefault("preprocess.normalize", d.Preprocess.Normalize)
	l.v.SetDefault("preprocess.edge_blur_kernel", d.Preprocess.EdgeBlurKernel)
	l.v.SetDefault("preprocess.edge_blur_sigma", d.Preprocess.EdgeBlurSigma)
	l.v.SetDefault("preprocess.canny_low", d.Preprocess.CannyLow)
	l.v.SetDefault("preprocess.canny_high", d.Preprocess.CannyHigh)
	l.v.SetDefault("preprocess.morph", d.Preprocess.Morph)
	l.v.SetDefault("preprocess.morph_size", d.Preprocess.MorphSize)
	l.v.SetDefault("preprocess.morph_iterations", d.Preprocess.MorphIterations)

	l.v.SetDefault("candidates.enabled", d.Candidates.Enabled)
	l.v.SetDefault("candidates.top_n", d.Candidates.TopN)
	l.v.SetDefault("candidates.epsilon_factor", d.Candidates.EpsilonFactor)
	l.v.SetDefault("candidates.padding_ratio", d.Candidates.PaddingRatio)

	l.v.SetDefault("decoder.formats", d.Decoder.Formats)
	l.v.SetDefault("decoder.try_harder", d.Decoder.TryHarder)

	l.v.SetDefault("labels.mode", d.Labels.Mode)

	l.v.SetDefault("display.width", d.Display.Width)
	l.v.SetDefault("display.height", d.Display.Height)
	l.v.SetDefault("display.rotation", d.Display.Rotation)
	l.v.SetDefault("display.mirrored", d.Display.Mirrored)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.handoff_file", d.Output.HandoffFile)
	l.v.SetDefault("output.overlay_dir", d.Output.OverlayDir)
	l.v.SetDefault("output.overlay_box_color", d.Output.OverlayBoxColor)
	l.v.SetDefault("output.overlay_point_color", d.Output.OverlayPointColor)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_frame_mb", d.Server.MaxFrameMB)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.idle_timeout_sec", d.Server.IdleTimeoutSec)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.sessions_per_minute", d.Server.RateLimit.SessionsPerMinute)
	l.v.SetDefault("server.rate_limit.sessions_per_hour", d.Server.RateLimit.SessionsPerHour)
	l.v.SetDefault("server.rate_limit.max_sessions_per_day", d.Server.RateLimit.MaxSessionsPerDay)
	l.v.SetDefault("server.rate_limit.max_frame_bytes_day", d.Server.RateLimit.MaxFrameBytesDay)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes every default to filename
// (matrixscan.yaml when empty).
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "matrixscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "matrixscan"))
	}

	return append(paths, "/etc/matrixscan")
}
