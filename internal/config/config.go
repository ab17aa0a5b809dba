package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	appName   = "docsearch-mcp"
	envPrefix = "DOCSEARCH"

	// DefaultSourceURL is where refresh downloads the search index from.
	DefaultSourceURL = "https://giggleliu.github.io/NiLang.jl/dev/search_index.js"
	// DefaultBaseURL prefixes record locations to build result links.
	DefaultBaseURL = "https://giggleliu.github.io/NiLang.jl/dev/"
)

// Config holds the server and CLI settings.
type Config struct {
	DataDir     string        `mapstructure:"data_dir"`
	SourceURL   string        `mapstructure:"source_url"`
	BaseURL     string        `mapstructure:"base_url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	MaxResults  int           `mapstructure:"max_results"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	LogLevel    string        `mapstructure:"log_level"`
}

// defaultDataDir returns ~/.docsearch-mcp, or ./data when the home directory
// is unknown.
func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+appName)
	}
	return filepath.Join(".", "data")
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DataDir:     defaultDataDir(),
		SourceURL:   DefaultSourceURL,
		BaseURL:     DefaultBaseURL,
		CacheTTL:    7 * 24 * time.Hour,
		MaxResults:  10,
		LockTimeout: 5 * time.Second,
		HTTPTimeout: 30 * time.Second,
		LogLevel:    "info",
	}
}

func newViper(searchPaths []string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")

	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if len(searchPaths) == 0 {
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, appName))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", appName))
		}
	}

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("source_url", d.SourceURL)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("cache_ttl", d.CacheTTL.String())
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("lock_timeout", d.LockTimeout.String())
	v.SetDefault("http_timeout", d.HTTPTimeout.String())
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config.toml from searchPaths (or the standard locations when
// none are given) and DOCSEARCH_* environment variables.
func Load(searchPaths ...string) (*Config, error) {
	v := newViper(searchPaths)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			expandHomeHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive, got %s", c.LockTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// expandHomeHookFunc expands a leading "~/" in string settings.
func expandHomeHookFunc() mapstructure.DecodeHookFuncKind {
	return func(f, t reflect.Kind, data interface{}) (interface{}, error) {
		if f != reflect.String || t != reflect.String {
			return data, nil
		}
		s := data.(string)
		if strings.HasPrefix(s, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Join(home, s[2:]), nil
			}
		}
		return s, nil
	}
}

// DocsPath is where downloaded search indexes are cached.
func (c *Config) DocsPath() string {
	return filepath.Join(c.DataDir, "docs")
}

// SearchPath holds the bleve index, its version marker and the lock file.
func (c *Config) SearchPath() string {
	return filepath.Join(c.DataDir, "search")
}
