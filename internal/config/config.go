// Package config holds the profilecheck configuration object. Values come
// from defaults, an optional config file, PROFILECHECK_* environment
// variables (a .env file is honoured) and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper consults.
const EnvPrefix = "PROFILECHECK"

// Trace policies.
const (
	TraceOff          = "off"
	TraceOnFirstRetry = "on-first-retry"
	TraceAlways       = "always"
)

// Config is the root configuration passed into the runner and the flow.
type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Timeouts  Timeouts      `mapstructure:"timeouts"`
	Browser   BrowserConfig `mapstructure:"browser"`
	Retries   int           `mapstructure:"retries"`
	Trace     string        `mapstructure:"trace"`
	Workers   int           `mapstructure:"workers"`
	DebugDir  string        `mapstructure:"debug_dir"`
	ReportDir string        `mapstructure:"report_dir"`
	Log       LogConfig     `mapstructure:"log"`
}

// Timeouts bounds every wait the flow performs.
type Timeouts struct {
	Scenario  time.Duration `mapstructure:"scenario"`
	Assertion time.Duration `mapstructure:"assertion"`
	Action    time.Duration `mapstructure:"action"`
	Probe     time.Duration `mapstructure:"probe"`    // password field on a candidate login page
	Field     time.Duration `mapstructure:"field"`    // each credential selector
	Selector  time.Duration `mapstructure:"selector"` // each profile field selector
}

// BrowserConfig controls the Chromium instance.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"`
	Stealth  bool   `mapstructure:"stealth"`
	Bin      string `mapstructure:"bin"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// SetDefaults registers the default value of every option on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://buggy.justtestit.org")
	v.SetDefault("timeouts.scenario", 30*time.Second)
	v.SetDefault("timeouts.assertion", 5*time.Second)
	v.SetDefault("timeouts.action", 10*time.Second)
	v.SetDefault("timeouts.probe", 3*time.Second)
	v.SetDefault("timeouts.field", 2*time.Second)
	v.SetDefault("timeouts.selector", time.Second)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("retries", 1)
	v.SetDefault("trace", TraceOnFirstRetry)
	v.SetDefault("workers", 1)
	v.SetDefault("debug_dir", "debug")
	v.SetDefault("report_dir", "profilecheck-report")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
}

// NewViper returns a viper instance with defaults and environment binding
// in place. Credentials are only ever read from the environment or a file.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	_ = v.BindEnv("username")
	_ = v.BindEnv("password")
	_ = v.BindEnv("browser.bin")
	_ = v.BindEnv("log.file")
	return v
}

// Load reads the optional config file and unmarshals v into a validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first problem that would make a run meaningless.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required (set %s_USERNAME and %s_PASSWORD)", EnvPrefix, EnvPrefix)
	}

	timeouts := map[string]time.Duration{
		"scenario":  c.Timeouts.Scenario,
		"assertion": c.Timeouts.Assertion,
		"action":    c.Timeouts.Action,
		"probe":     c.Timeouts.Probe,
		"field":     c.Timeouts.Field,
		"selector":  c.Timeouts.Selector,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive, got %s", name, d)
		}
	}

	switch c.Trace {
	case TraceOff, TraceOnFirstRetry, TraceAlways:
	default:
		return fmt.Errorf("unknown trace policy %q (supported: %s, %s, %s)", c.Trace, TraceOff, TraceOnFirstRetry, TraceAlways)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// TraceAttempt reports whether attempt (0-based) should record a trace.
func (c *Config) TraceAttempt(attempt int) bool {
	switch c.Trace {
	case TraceAlways:
		return true
	case TraceOnFirstRetry:
		return attempt == 1
	default:
		return false
	}
}
