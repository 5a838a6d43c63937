//nolint:lll
package config

// Config is the complete matrixscan configuration. It is shared by every
// command (scan, review, serve) and loaded from a config file, environment
// variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Candidates CandidatesConfig `mapstructure:"candidates" yaml:"candidates" json:"candidates"`
	Decoder    DecoderConfig    `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	Labels     LabelsConfig     `mapstructure:"labels" yaml:"labels" json:"labels"`

	// Display geometry used for offline overlays
	Display DisplayConfig `mapstructure:"display" yaml:"display" json:"display"`

	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PreprocessConfig contains the decode and edge chain parameters.
type PreprocessConfig struct {
	DecodeBlurKernel int     `mapstructure:"decode_blur_kernel" yaml:"decode_blur_kernel" json:"decode_blur_kernel"`
	DecodeBlurSigma  float64 `mapstructure:"decode_blur_sigma" yaml:"decode_blur_sigma" json:"decode_blur_sigma"`
	Normalize        bool    `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
	EdgeBlurKernel   int     `mapstructure:"edge_blur_kernel" yaml:"edge_blur_kernel" json:"edge_blur_kernel"`
	EdgeBlurSigma    float64 `mapstructure:"edge_blur_sigma" yaml:"edge_blur_sigma" json:"edge_blur_sigma"`
	CannyLow         float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh        float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`

	// Morphology applied to the edge map
	Morph           string `mapstructure:"morph" yaml:"morph" json:"morph"`
	MorphSize       int    `mapstructure:"morph_size" yaml:"morph_size" json:"morph_size"`
	MorphIterations int    `mapstructure:"morph_iterations" yaml:"morph_iterations" json:"morph_iterations"`
}

// CandidatesConfig contains contour candidate settings.
type CandidatesConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TopN          int     `mapstructure:"top_n" yaml:"top_n" json:"top_n"`
	EpsilonFactor float64 `mapstructure:"epsilon_factor" yaml:"epsilon_factor" json:"epsilon_factor"`
	PaddingRatio  float64 `mapstructure:"padding_ratio" yaml:"padding_ratio" json:"padding_ratio"`
}

// DecoderConfig contains barcode decoder settings.
type DecoderConfig struct {
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
}

// LabelsConfig selects how symbologies are labelled in the result list.
type LabelsConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// DisplayConfig describes the preview surface frames are mapped onto.
// A zero width or height uses the frame size.
type DisplayConfig struct {
	Width    int  `mapstructure:"width" yaml:"width" json:"width"`
	Height   int  `mapstructure:"height" yaml:"height" json:"height"`
	Rotation int  `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
	Mirrored bool `mapstructure:"mirrored" yaml:"mirrored" json:"mirrored"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format            string `mapstructure:"format" yaml:"format" json:"format"`
	File              string `mapstructure:"file" yaml:"file" json:"file"`
	HandoffFile       string `mapstructure:"handoff_file" yaml:"handoff_file" json:"handoff_file"`
	OverlayDir        string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayBoxColor   string `mapstructure:"overlay_box_color" yaml:"overlay_box_color" json:"overlay_box_color"`
	OverlayPointColor string `mapstructure:"overlay_point_color" yaml:"overlay_point_color" json:"overlay_point_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxFrameMB      int    `mapstructure:"max_frame_mb" yaml:"max_frame_mb" json:"max_frame_mb"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	IdleTimeoutSec  int    `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec" json:"idle_timeout_sec"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig limits new sessions and frame bytes per client. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	SessionsPerMinute int   `mapstructure:"sessions_per_minute" yaml:"sessions_per_minute" json:"sessions_per_minute"`
	SessionsPerHour   int   `mapstructure:"sessions_per_hour" yaml:"sessions_per_hour" json:"sessions_per_hour"`
	MaxSessionsPerDay int   `mapstructure:"max_sessions_per_day" yaml:"max_sessions_per_day" json:"max_sessions_per_day"`
	MaxFrameBytesDay  int64 `mapstructure:"max_frame_bytes_day" yaml:"max_frame_bytes_day" json:"max_frame_bytes_day"`
}
