package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the main configuration structure for neobot.
type Config struct {
	Version       int                 `yaml:"version" jsonschema:"description=Config file version"`
	Discord       DiscordConfig       `yaml:"discord"`
	Scripts       ScriptsConfig       `yaml:"scripts"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DiscordConfig configures the Discord session.
type DiscordConfig struct {
	Token                string   `yaml:"token" jsonschema:"description=Bot token; falls back to NEOBOT_DISCORD_TOKEN or DISCORD_API_TOKEN"`
	Intents              []string `yaml:"intents"`
	RateLimit            float64  `yaml:"rate_limit" jsonschema:"minimum=0,description=Outbound REST calls per second; 0 selects the default of 5"`
	RateBurst            int      `yaml:"rate_burst" jsonschema:"minimum=0"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts" jsonschema:"minimum=0"`
	ReconnectBackoff     Duration `yaml:"reconnect_backoff"`
	RequestTimeout       Duration `yaml:"request_timeout"`
}

// ScriptsConfig configures script recognition, the sandbox and feedback.
type ScriptsConfig struct {
	Fence             string         `yaml:"fence" jsonschema:"description=Language tag after the opening code fence"`
	EchoCompileErrors *bool          `yaml:"echo_compile_errors"`
	CallTimeout       Duration       `yaml:"call_timeout"`
	AllowedPackages   []string       `yaml:"allowed_packages"`
	IgnoreBots        *bool          `yaml:"ignore_bots"`
	EventBuffer       int            `yaml:"event_buffer" jsonschema:"minimum=0"`
	Feedback          FeedbackConfig `yaml:"feedback"`
	Control           ControlConfig  `yaml:"control"`
}

// FeedbackConfig holds the reaction glyph for each feedback category.
type FeedbackConfig struct {
	Success  string `yaml:"success"`
	Failure  string `yaml:"failure"`
	Executed string `yaml:"executed"`
	Fault    string `yaml:"fault"`
}

// ControlConfig holds the reactions the author uses to toggle a script.
type ControlConfig struct {
	Disable string `yaml:"disable"`
	Enable  string `yaml:"enable"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
	Format string `yaml:"format" jsonschema:"enum=json,enum=text,enum=auto"`
}

type ObservabilityConfig struct {
	MetricsAddr string        `yaml:"metrics_addr" jsonschema:"description=Listen address for /metrics and /healthz; empty disables"`
	Tracing     TracingConfig `yaml:"tracing"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate" jsonschema:"minimum=0,maximum=1"`
	Insecure     bool    `yaml:"insecure"`
}

// Token environment variables, checked in order when discord.token is empty.
var tokenEnvVars = []string{"NEOBOT_DISCORD_TOKEN", "DISCORD_API_TOKEN"}

// DefaultIntents are requested when discord.intents is empty.
var DefaultIntents = []string{
	"guilds",
	"guild_messages",
	"guild_message_reactions",
	"guild_members",
	"message_content",
}

// DefaultAllowedPackages is the standard library subset visible to scripts.
var DefaultAllowedPackages = []string{
	"bytes",
	"errors",
	"fmt",
	"math",
	"math/rand",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode/utf8",
}

// Load reads, validates and decodes the config at path. An empty path
// yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	var cfg *Config
	if strings.TrimSpace(path) == "" {
		cfg = &Config{}
	} else {
		raw, err := LoadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := ValidateRaw(raw); err != nil {
			return nil, err
		}
		cfg, err = decodeRawConfig(raw)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if len(cfg.Discord.Intents) == 0 {
		cfg.Discord.Intents = append([]string(nil), DefaultIntents...)
	}
	if cfg.Discord.RateLimit == 0 {
		cfg.Discord.RateLimit = 5
	}
	if cfg.Discord.RateBurst == 0 {
		cfg.Discord.RateBurst = 5
	}
	if cfg.Discord.MaxReconnectAttempts == 0 {
		cfg.Discord.MaxReconnectAttempts = 5
	}
	if cfg.Discord.ReconnectBackoff == 0 {
		cfg.Discord.ReconnectBackoff = Duration(60 * time.Second)
	}
	if cfg.Discord.RequestTimeout == 0 {
		cfg.Discord.RequestTimeout = Duration(10 * time.Second)
	}

	if cfg.Scripts.Fence == "" {
		cfg.Scripts.Fence = "neo"
	}
	if cfg.Scripts.EchoCompileErrors == nil {
		cfg.Scripts.EchoCompileErrors = boolPtr(true)
	}
	if cfg.Scripts.IgnoreBots == nil {
		cfg.Scripts.IgnoreBots = boolPtr(true)
	}
	if cfg.Scripts.CallTimeout == 0 {
		cfg.Scripts.CallTimeout = Duration(5 * time.Second)
	}
	if len(cfg.Scripts.AllowedPackages) == 0 {
		cfg.Scripts.AllowedPackages = append([]string(nil), DefaultAllowedPackages...)
	}
	if cfg.Scripts.EventBuffer == 0 {
		cfg.Scripts.EventBuffer = 256
	}

	fb := &cfg.Scripts.Feedback
	if fb.Success == "" {
		fb.Success = "🟢"
	}
	if fb.Failure == "" {
		fb.Failure = "🔴"
	}
	if fb.Executed == "" {
		fb.Executed = "😇"
	}
	if fb.Fault == "" {
		fb.Fault = "💀"
	}
	if cfg.Scripts.Control.Disable == "" {
		cfg.Scripts.Control.Disable = fb.Success
	}
	if cfg.Scripts.Control.Enable == "" {
		cfg.Scripts.Control.Enable = fb.Failure
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "neobot"
	}
	if cfg.Observability.Tracing.SamplingRate == 0 {
		cfg.Observability.Tracing.SamplingRate = 1.0
	}
}

func applyEnvOverrides(cfg *Config) {
	if strings.TrimSpace(cfg.Discord.Token) != "" {
		return
	}
	for _, key := range tokenEnvVars {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			cfg.Discord.Token = value
			return
		}
	}
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	var issues []string

	if strings.ContainsAny(c.Scripts.Fence, " \t\r\n`") {
		issues = append(issues, "scripts.fence must not contain whitespace or backticks")
	}
	if c.Scripts.CallTimeout < 0 {
		issues = append(issues, "scripts.call_timeout must be positive")
	}
	if c.Scripts.EventBuffer < 0 {
		issues = append(issues, "scripts.event_buffer must be >= 0")
	}
	if c.Discord.RateLimit < 0 {
		issues = append(issues, "discord.rate_limit must be >= 0")
	}
	if c.Discord.RequestTimeout < 0 || c.Discord.ReconnectBackoff < 0 {
		issues = append(issues, "discord durations must be positive")
	}
	if c.Scripts.Control.Enable == c.Scripts.Control.Disable {
		issues = append(issues, "scripts.control.enable and scripts.control.disable must differ")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "auto":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json, text or auto", c.Logging.Format))
	}
	if rate := c.Observability.Tracing.SamplingRate; rate < 0 || rate > 1 {
		issues = append(issues, "observability.tracing.sampling_rate must be within [0, 1]")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// ValidationError collects every semantic issue found in a config.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

func boolPtr(v bool) *bool { return &v }
