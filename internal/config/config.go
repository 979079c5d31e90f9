// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Pacing() PacingConfig
	Oracle() OracleConfig
	Course() CourseConfig
	Review() ReviewConfig
	Agent() AgentConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserProfileDir(string)

	// Oracle Setters
	SetOracleProvider(string)
	SetOracleModel(string)

	// Course Setters
	SetCourseURL(string)

	// Agent Setters
	SetAgentLegalName(string)
}

// Config holds the entire application configuration. Sections are exported so
// viper can unmarshal into them; callers go through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	PacingCfg  PacingConfig  `mapstructure:"pacing" yaml:"pacing"`
	OracleCfg  OracleConfig  `mapstructure:"oracle" yaml:"oracle"`
	CourseCfg  CourseConfig  `mapstructure:"course" yaml:"course"`
	ReviewCfg  ReviewConfig  `mapstructure:"review" yaml:"review"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Pacing() PacingConfig   { return c.PacingCfg }
func (c *Config) Oracle() OracleConfig   { return c.OracleCfg }
func (c *Config) Course() CourseConfig   { return c.CourseCfg }
func (c *Config) Review() ReviewConfig   { return c.ReviewCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserProfileDir(dir string) { c.BrowserCfg.ProfileDir = dir }
func (c *Config) SetOracleProvider(p string)      { c.OracleCfg.Provider = OracleProvider(p) }
func (c *Config) SetOracleModel(m string)         { c.OracleCfg.Model = m }
func (c *Config) SetCourseURL(u string)           { c.CourseCfg.URL = u }
func (c *Config) SetAgentLegalName(n string)      { c.AgentCfg.LegalName = n }

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

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Chrome session and the explicit waits used against it.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	ProfileDir        string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	LivenessTimeout   time.Duration `mapstructure:"liveness_timeout" yaml:"liveness_timeout"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Persona           PersonaConfig `mapstructure:"persona" yaml:"persona"`
}

// PersonaConfig is the browser fingerprint presented to the course platform.
type PersonaConfig struct {
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// OracleProvider identifies the decision oracle backend.
type OracleProvider string

const (
	ProviderGemini OracleProvider = "gemini"
	// ProviderStatic answers every question with a fixed reply. Useful for dry runs.
	ProviderStatic OracleProvider = "static"
)

// OracleConfig configures the external decision oracle.
type OracleConfig struct {
	Provider          OracleProvider `mapstructure:"provider" yaml:"provider"`
	Model             string         `mapstructure:"model" yaml:"model"`
	APIKey            string         `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32        `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int            `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64        `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Backoff           time.Duration  `mapstructure:"backoff" yaml:"backoff"`
	StaticReply       string         `mapstructure:"static_reply" yaml:"static_reply"`
}

// CourseConfig describes where traversal starts.
type CourseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReviewConfig controls the manual-review log.
type ReviewConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig holds page-processing behaviour.
type AgentConfig struct {
	LegalName         string `mapstructure:"legal_name" yaml:"legal_name"`
	AcceptHonorCode   bool   `mapstructure:"accept_honor_code" yaml:"accept_honor_code"`
	SummarizeReadings bool   `mapstructure:"summarize_readings" yaml:"summarize_readings"`
	SummarizeVideos   bool   `mapstructure:"summarize_videos" yaml:"summarize_videos"`
	ScreenshotOnFail  bool   `mapstructure:"screenshot_on_fail" yaml:"screenshot_on_fail"`
	// PromptIDPrefixes are the aria-labelledby prefixes recognized as question prompts.
	PromptIDPrefixes []string `mapstructure:"prompt_id_prefixes" yaml:"prompt_id_prefixes"`
}

// NewDefaultConfig creates a new configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "coursepilot")
	v.SetDefault("logger.log_file", "coursepilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.profile_dir", "~/.coursepilot/profile")
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.wait_timeout", "15s")
	v.SetDefault("browser.poll_interval", "250ms")
	v.SetDefault("browser.liveness_timeout", "3s")
	v.SetDefault("browser.screenshot_dir", "~/.coursepilot/screenshots")
	v.SetDefault("browser.persona.locale", "en-US")
	v.SetDefault("browser.persona.timezone", "America/New_York")
	v.SetDefault("browser.persona.languages", []string{"en-US", "en"})

	// -- Pacing --
	setPacingDefaults(v)

	// -- Oracle --
	v.SetDefault("oracle.provider", string(ProviderGemini))
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.api_timeout", "30s")
	v.SetDefault("oracle.temperature", 0.0)
	v.SetDefault("oracle.max_tokens", 64)
	v.SetDefault("oracle.requests_per_minute", 30.0)
	v.SetDefault("oracle.backoff", "5s")
	v.SetDefault("oracle.static_reply", "A")

	// -- Review --
	v.SetDefault("review.path", "~/.coursepilot/manual_review.jsonl")
	v.SetDefault("review.max_size", 10)
	v.SetDefault("review.max_backups", 5)
	v.SetDefault("review.max_age", 90)
	v.SetDefault("review.compress", false)

	// -- Agent --
	v.SetDefault("agent.accept_honor_code", true)
	v.SetDefault("agent.summarize_readings", false)
	v.SetDefault("agent.summarize_videos", false)
	v.SetDefault("agent.screenshot_on_fail", true)
	v.SetDefault("agent.prompt_id_prefixes", []string{"prompt-autoGradableResponseId"})
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("oracle.api_key", "COURSEPILOT_ORACLE_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("agent.legal_name", "COURSEPILOT_LEGAL_NAME")
	v.BindEnv("course.url", "COURSEPILOT_COURSE_URL", "COURSE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.OracleCfg.Provider == ProviderGemini && cfg.OracleCfg.APIKey == "" {
		cfg.OracleCfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves "~" in every filesystem path the program writes to.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.ProfileDir,
		&c.BrowserCfg.ScreenshotDir,
		&c.ReviewCfg.Path,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.WaitTimeout <= 0 {
		return fmt.Errorf("browser.wait_timeout must be a positive duration")
	}
	if c.BrowserCfg.PollInterval <= 0 || c.BrowserCfg.PollInterval > c.BrowserCfg.WaitTimeout {
		return fmt.Errorf("browser.poll_interval must be positive and not exceed browser.wait_timeout")
	}
	if c.BrowserCfg.LivenessTimeout <= 0 {
		return fmt.Errorf("browser.liveness_timeout must be a positive duration")
	}
	if err := c.PacingCfg.Validate(); err != nil {
		return fmt.Errorf("pacing configuration invalid: %w", err)
	}
	if err := c.OracleCfg.Validate(); err != nil {
		return fmt.Errorf("oracle configuration invalid: %w", err)
	}
	if c.ReviewCfg.Path == "" {
		return fmt.Errorf("review.path is a required configuration field")
	}
	return nil
}

// Validate checks the oracle settings.
func (o *OracleConfig) Validate() error {
	switch o.Provider {
	case ProviderGemini:
		if o.Model == "" {
			return fmt.Errorf("oracle.model is required for provider %q", o.Provider)
		}
	case ProviderStatic:
		if strings.TrimSpace(o.StaticReply) == "" {
			return fmt.Errorf("oracle.static_reply is required for provider %q", o.Provider)
		}
	default:
		return fmt.Errorf("oracle.provider %q is not supported", o.Provider)
	}
	if o.MaxTokens <= 0 {
		return fmt.Errorf("oracle.max_tokens must be a positive integer")
	}
	if o.RequestsPerMinute <= 0 {
		return fmt.Errorf("oracle.requests_per_minute must be positive")
	}
	if o.Backoff < 0 {
		return fmt.Errorf("oracle.backoff must not be negative")
	}
	return nil
}
