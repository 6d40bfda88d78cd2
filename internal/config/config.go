package config

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Narrative NarrativeConfig `yaml:"narrative" mapstructure:"narrative"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// InputConfig configures how paired tables are read.
type InputConfig struct {
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
	LazyQuotes bool   `yaml:"lazy_quotes" mapstructure:"lazy_quotes"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	SchemaFile string `yaml:"schema_file" mapstructure:"schema_file"`
}

// PipelineConfig holds the feature pipeline's business constants.
type PipelineConfig struct {
	CCPriorityCode      string   `yaml:"cc_priority_code" mapstructure:"cc_priority_code"`
	NewAccountMaxMonths float64  `yaml:"new_account_max_months" mapstructure:"new_account_max_months"`
	RankByCustomer      bool     `yaml:"rank_by_customer" mapstructure:"rank_by_customer"`
	DateLayouts         []string `yaml:"date_layouts" mapstructure:"date_layouts"`
}

// NarrativeConfig configures report generation.
type NarrativeConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyMB      int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
}

// Load reads configuration from config.yaml (optional) and CREDIT_*
// environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike the default
// config.yaml, an explicit file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.encoding", "")
	v.SetDefault("input.lazy_quotes", false)
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.schema_file", "")
	v.SetDefault("pipeline.cc_priority_code", "01.0 CC")
	v.SetDefault("pipeline.new_account_max_months", 3)
	v.SetDefault("pipeline.rank_by_customer", false)
	v.SetDefault("pipeline.date_layouts", []string{})
	v.SetDefault("narrative.concurrency", 8)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 64)

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

// Validate checks the settings a command needs. Scope is the command name:
// "features", "narrate", "plan", "serve", or "save" when pairs are persisted.
// Every violation is reported in one error.
func (c *Config) Validate(scope string) error {
	switch scope {
	case "features", "narrate", "plan", "serve", "save":
	default:
		return eris.Errorf("config: unknown mode %q", scope)
	}

	var errs []string

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}

	switch scope {
	case "features", "narrate", "plan", "serve":
		if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
			errs = append(errs, "input.delimiter must be a single character")
		}
		if c.Pipeline.CCPriorityCode == "" {
			errs = append(errs, "pipeline.cc_priority_code is required")
		}
		if c.Pipeline.NewAccountMaxMonths <= 0 {
			errs = append(errs, "pipeline.new_account_max_months must be > 0")
		}
	}

	switch scope {
	case "narrate", "serve":
		if c.Narrative.Concurrency < 0 {
			errs = append(errs, "narrative.concurrency must be >= 0")
		}
	}

	switch scope {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.MaxBodyMB <= 0 {
			errs = append(errs, "server.max_body_mb must be positive")
		}
	case "save":
		switch c.Store.Driver {
		case "sqlite":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for postgres (CREDIT_STORE_DATABASE_URL)")
			}
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must not exceed store.max_conns")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", scope, strings.Join(errs, "; "))
	}
	return nil
}

// DelimiterRune returns the input delimiter, defaulting to a comma.
func (c InputConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// InitLogger configures the global zap logger based on config.
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
