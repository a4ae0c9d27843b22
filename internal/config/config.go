package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SessionConfig selects and tunes the page session backend.
type SessionConfig struct {
	// Driver is "browser" (headless Chrome) or "http" (static DOM).
	Driver              string  `yaml:"driver" mapstructure:"driver"`
	Headless            bool    `yaml:"headless" mapstructure:"headless"`
	UserAgent           string  `yaml:"user_agent" mapstructure:"user_agent"`
	PageLoadTimeoutSecs int     `yaml:"page_load_timeout_secs" mapstructure:"page_load_timeout_secs"`
	HTTPTimeoutSecs     int     `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
	RatePerSec          float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs      int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// PipelineConfig configures the SAFER search, gates and field extraction.
type PipelineConfig struct {
	// LocatorsPath optionally points at a YAML locator profile layered over
	// the built-in one.
	LocatorsPath string `yaml:"locators_path" mapstructure:"locators_path"`
	// SnapshotURL overrides the profile's search page.
	SnapshotURL string `yaml:"snapshot_url" mapstructure:"snapshot_url"`

	SearchTimeoutSecs         int `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	GateTimeoutSecs           int `yaml:"gate_timeout_secs" mapstructure:"gate_timeout_secs"`
	LinkTimeoutSecs           int `yaml:"link_timeout_secs" mapstructure:"link_timeout_secs"`
	LinkClickTimeoutSecs      int `yaml:"link_click_timeout_secs" mapstructure:"link_click_timeout_secs"`
	TabLoadTimeoutSecs        int `yaml:"tab_load_timeout_secs" mapstructure:"tab_load_timeout_secs"`
	AdditionalTimeoutSecs     int `yaml:"additional_timeout_secs" mapstructure:"additional_timeout_secs"`
	AdditionalLoadTimeoutSecs int `yaml:"additional_load_timeout_secs" mapstructure:"additional_load_timeout_secs"`
	FieldTimeoutSecs          int `yaml:"field_timeout_secs" mapstructure:"field_timeout_secs"`
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	ArtifactDir          string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
	MaxConsecutiveErrors int    `yaml:"max_consecutive_errors" mapstructure:"max_consecutive_errors"`
	MaxRange             int    `yaml:"max_range" mapstructure:"max_range"`
}

// OutputConfig configures the result sinks.
type OutputConfig struct {
	CSVPath  string `yaml:"csv_path" mapstructure:"csv_path"`
	XLSXPath string `yaml:"xlsx_path" mapstructure:"xlsx_path"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the control API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MCX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("session.driver", "browser")
	v.SetDefault("session.headless", true)
	v.SetDefault("session.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("session.page_load_timeout_secs", 30)
	v.SetDefault("session.http_timeout_secs", 30)
	v.SetDefault("session.rate_per_sec", 2.0)
	v.SetDefault("session.burst", 1)
	v.SetDefault("session.max_retries", 2)
	v.SetDefault("session.retry_backoff_ms", 500)
	v.SetDefault("pipeline.locators_path", "")
	v.SetDefault("pipeline.snapshot_url", "")
	v.SetDefault("pipeline.search_timeout_secs", 10)
	v.SetDefault("pipeline.gate_timeout_secs", 5)
	v.SetDefault("pipeline.link_timeout_secs", 3)
	v.SetDefault("pipeline.link_click_timeout_secs", 10)
	v.SetDefault("pipeline.tab_load_timeout_secs", 5)
	v.SetDefault("pipeline.additional_timeout_secs", 5)
	v.SetDefault("pipeline.additional_load_timeout_secs", 3)
	v.SetDefault("pipeline.field_timeout_secs", 5)
	v.SetDefault("batch.artifact_dir", ".")
	v.SetDefault("batch.max_consecutive_errors", 0)
	v.SetDefault("batch.max_range", 100000)
	v.SetDefault("output.csv_path", "mc_records.csv")
	v.SetDefault("output.xlsx_path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mc_runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "extract", "serve" and "runs".
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch mode {
	case "extract", "serve":
		c.validateSession(add)
		c.validatePipeline(add)
		if c.Output.CSVPath == "" {
			add("output.csv_path is required")
		}
		if c.Batch.MaxConsecutiveErrors < 0 {
			add("batch.max_consecutive_errors must be >= 0")
		}
		if c.Batch.MaxRange <= 0 {
			add("batch.max_range must be > 0")
		}
		c.validateStore(add, false)
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			add("server.port must be > 0 and <= 65535, got %d", c.Server.Port)
		}
	case "runs":
		c.validateStore(add, true)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateSession(add func(string, ...any)) {
	switch c.Session.Driver {
	case "browser", "http":
	default:
		add("session.driver must be browser or http, got %q", c.Session.Driver)
	}
	if c.Session.RatePerSec < 0 {
		add("session.rate_per_sec must be >= 0")
	}
	if c.Session.MaxRetries < 0 {
		add("session.max_retries must be >= 0")
	}
}

func (c *Config) validatePipeline(add func(string, ...any)) {
	p := c.Pipeline
	for _, t := range []struct {
		key  string
		secs int
	}{
		{"search_timeout_secs", p.SearchTimeoutSecs},
		{"gate_timeout_secs", p.GateTimeoutSecs},
		{"link_timeout_secs", p.LinkTimeoutSecs},
		{"link_click_timeout_secs", p.LinkClickTimeoutSecs},
		{"tab_load_timeout_secs", p.TabLoadTimeoutSecs},
		{"additional_timeout_secs", p.AdditionalTimeoutSecs},
		{"additional_load_timeout_secs", p.AdditionalLoadTimeoutSecs},
		{"field_timeout_secs", p.FieldTimeoutSecs},
	} {
		if t.secs < 0 {
			add("pipeline.%s must be >= 0", t.key)
		}
	}
}

func (c *Config) validateStore(add func(string, ...any), required bool) {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for driver %s", c.Store.Driver)
		}
	case "none":
		if required {
			add("store.driver none keeps no run history")
		}
	default:
		add("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver)
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
