// Package config handles application configuration using Viper.
// Settings come from an INI file (config/config.conf under the user-data
// root) merged over compiled-in defaults, with environment variables on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related
// settings; `mapstructure` tags map INI section.key pairs to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Recording RecordingConfig `mapstructure:"recording"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CORSConfig lists the browser origins allowed to call the bridge.
// AllowedOrigins is comma separated in the INI file.
type CORSConfig struct {
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins returns the allowed origins as a slice, whitespace trimmed.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RateLimitConfig bounds the backup endpoints, which walk every table.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type DatabaseConfig struct {
	// ExpectedVersion pins the schema version this build expects, as a
	// semver string. Empty means "whatever the bundled migrations target".
	ExpectedVersion string `mapstructure:"expected_version"`
}

// RecordingConfig is passthrough for the external capture tool. The data
// core never interprets these values; the bridge hands them to the recorder.
type RecordingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
	FrameRate int    `mapstructure:"frame_rate"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the INI file at configPath (if present) and
// environment variables, merged over defaults. A missing file is not an
// error; defaults plus env are enough for a fresh install.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8310)
	v.SetDefault("database.expected_version", "")
	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.output_dir", "")
	v.SetDefault("recording.frame_rate", 30)
	v.SetDefault("cors.allowed_origins", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("ratelimit.requests_per_second", 1)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("log.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			// The file is optional; only a malformed file is fatal.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	// Environment variables override everything.
	// DPL_ prefix + nested keys: DPL_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("DPL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Address returns the listen address string like "127.0.0.1:8310".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
