package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/kmalloy/sitejudge/internal/humanoid"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	LLM        LLMRouterConfig  `mapstructure:"llm" yaml:"llm"`
	Evaluation EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	Recording  RecordingConfig  `mapstructure:"recording" yaml:"recording"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the remote browser connection.
type BrowserConfig struct {
	// CDPEndpoint is the websocket URL of the remote DevTools endpoint,
	// e.g. "ws://browser-host:9222/devtools/browser/<id>".
	CDPEndpoint       string          `mapstructure:"cdp_endpoint" yaml:"cdp_endpoint"`
	UserAgent         string          `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration   `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ScreenshotTimeout time.Duration   `mapstructure:"screenshot_timeout" yaml:"screenshot_timeout"`
	Humanoid          humanoid.Config `mapstructure:"humanoid" yaml:"humanoid"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderBedrock LLMProvider = "bedrock"
	ProviderGemini  LLMProvider = "gemini"
)

// LLMRouterConfig configures model selection and request pacing.
type LLMRouterConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	Region            string        `mapstructure:"region" yaml:"region"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// WebsiteConfig names one site under evaluation. Instructions are free-form
// site-specific guidance prepended to the recorder's prompt.
type WebsiteConfig struct {
	Key          string `mapstructure:"key" yaml:"key"`
	URL          string `mapstructure:"url" yaml:"url"`
	Instructions string `mapstructure:"instructions" yaml:"instructions"`
}

// EvaluationConfig drives an evaluation run across websites and features.
type EvaluationConfig struct {
	Websites       []WebsiteConfig `mapstructure:"websites" yaml:"websites"`
	Features       []string        `mapstructure:"features" yaml:"features"`
	OutputDir      string          `mapstructure:"output_dir" yaml:"output_dir"`
	Parallelism    int             `mapstructure:"parallelism" yaml:"parallelism"`
	MaxSteps       int             `mapstructure:"max_steps" yaml:"max_steps"`
	SessionTimeout time.Duration   `mapstructure:"session_timeout" yaml:"session_timeout"`

	// Search parameters substituted into the feature prompts.
	Destination string `mapstructure:"destination" yaml:"destination"`
	CheckIn     string `mapstructure:"check_in" yaml:"check_in"`
	CheckOut    string `mapstructure:"check_out" yaml:"check_out"`
}

// RecordingConfig locates session replay recordings in S3.
type RecordingConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Bucket        string        `mapstructure:"bucket" yaml:"bucket"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	Region        string        `mapstructure:"region" yaml:"region"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry" yaml:"presign_expiry"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	applyFallbacks(&cfg)
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sitejudge")
	v.SetDefault("logger.log_file", "sitejudge.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.screenshot_timeout", "15s")
	setHumanoidDefaults(v)

	// -- LLM --
	v.SetDefault("llm.provider", "bedrock")
	v.SetDefault("llm.fast_model", "eu.anthropic.claude-3-5-haiku-20241022-v1:0")
	v.SetDefault("llm.powerful_model", "eu.anthropic.claude-sonnet-4-20250514-v1:0")
	v.SetDefault("llm.region", "eu-west-1")
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.requests_per_minute", 30.0)

	// -- Evaluation --
	v.SetDefault("evaluation.features", []string{"relevance_of_top_listings"})
	v.SetDefault("evaluation.output_dir", "reports")
	v.SetDefault("evaluation.parallelism", 2)
	v.SetDefault("evaluation.max_steps", 40)
	v.SetDefault("evaluation.session_timeout", "1h")
	v.SetDefault("evaluation.destination", "Zurich")
	v.SetDefault("evaluation.check_in", "2026-09-20")
	v.SetDefault("evaluation.check_out", "2026-09-23")

	// -- Recording --
	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.prefix", "recordings")
	v.SetDefault("recording.region", "eu-west-1")
	v.SetDefault("recording.presign_expiry", "168h")
}

// setHumanoidDefaults mirrors humanoid.DefaultConfig into viper so config
// files can override individual parameters.
func setHumanoidDefaults(v *viper.Viper) {
	d := humanoid.DefaultConfig()
	v.SetDefault("browser.humanoid.fitts_a_mean", d.FittsAMean)
	v.SetDefault("browser.humanoid.fitts_a_stddev", d.FittsAStdDev)
	v.SetDefault("browser.humanoid.fitts_b_mean", d.FittsBMean)
	v.SetDefault("browser.humanoid.fitts_b_stddev", d.FittsBStdDev)
	v.SetDefault("browser.humanoid.gaussian_strength_mean", d.GaussianStrengthMean)
	v.SetDefault("browser.humanoid.gaussian_strength_stddev", d.GaussianStrengthStdDev)
	v.SetDefault("browser.humanoid.perlin_amplitude_mean", d.PerlinAmplitudeMean)
	v.SetDefault("browser.humanoid.perlin_amplitude_stddev", d.PerlinAmplitudeStdDev)
	v.SetDefault("browser.humanoid.curve_bend", d.CurveBend)
	v.SetDefault("browser.humanoid.click_hold_min_ms", d.ClickHoldMinMs)
	v.SetDefault("browser.humanoid.click_hold_max_ms", d.ClickHoldMaxMs)
	v.SetDefault("browser.humanoid.key_hold_mean_ms", d.KeyHoldMeanMs)
	v.SetDefault("browser.humanoid.key_hold_stddev_ms", d.KeyHoldStdDevMs)
	v.SetDefault("browser.humanoid.key_pause_mean", d.KeyPauseMean)
	v.SetDefault("browser.humanoid.key_pause_stddev", d.KeyPauseStdDev)
	v.SetDefault("browser.humanoid.key_pause_min", d.KeyPauseMin)
	v.SetDefault("browser.humanoid.key_pause_ngram_factor2", d.KeyPauseNgramFactor2)
	v.SetDefault("browser.humanoid.key_pause_ngram_factor3", d.KeyPauseNgramFactor3)
	v.SetDefault("browser.humanoid.key_pause_fatigue_factor", d.KeyPauseFatigueFactor)
	v.SetDefault("browser.humanoid.fatigue_increase_rate", d.FatigueIncreaseRate)
	v.SetDefault("browser.humanoid.fatigue_recovery_rate", d.FatigueRecoveryRate)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("llm.api_key", "SITEJUDGE_LLM_API_KEY")
	v.BindEnv("browser.cdp_endpoint", "SITEJUDGE_CDP_ENDPOINT")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("SITEJUDGE_LLM_API_KEY")
	}
	applyFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultWebsites lists the travel booking sites evaluated when the config
// file does not name its own set.
func DefaultWebsites() []WebsiteConfig {
	return []WebsiteConfig{
		{Key: "booking", URL: "https://www.booking.com"},
		{Key: "agoda", URL: "https://www.agoda.com"},
		{Key: "skyscanner", URL: "https://www.skyscanner.net/hotels"},
		{Key: "google_travel_hotels", URL: "https://www.google.com/travel/search"},
	}
}

func applyFallbacks(cfg *Config) {
	if len(cfg.Evaluation.Websites) == 0 {
		cfg.Evaluation.Websites = DefaultWebsites()
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Evaluation.Parallelism <= 0 {
		return fmt.Errorf("evaluation.parallelism must be a positive integer")
	}
	if c.Evaluation.MaxSteps <= 0 {
		return fmt.Errorf("evaluation.max_steps must be a positive integer")
	}
	if c.Evaluation.SessionTimeout <= 0 {
		return fmt.Errorf("evaluation.session_timeout must be a positive duration")
	}
	seen := make(map[string]struct{}, len(c.Evaluation.Websites))
	for _, w := range c.Evaluation.Websites {
		if w.Key == "" || w.URL == "" {
			return fmt.Errorf("every evaluation website needs a key and a url")
		}
		if _, dup := seen[w.Key]; dup {
			return fmt.Errorf("duplicate website key %q", w.Key)
		}
		seen[w.Key] = struct{}{}
	}
	switch c.LLM.Provider {
	case ProviderBedrock, ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderGemini && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required for the gemini provider. Ensure SITEJUDGE_LLM_API_KEY is set")
	}
	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the recording locator settings.
func (r *RecordingConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Bucket == "" {
		return fmt.Errorf("bucket is required when recording lookup is enabled")
	}
	if r.PresignExpiry <= 0 {
		return fmt.Errorf("presign_expiry must be a positive duration")
	}
	return nil
}
