package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogPretty         bool          `mapstructure:"log_pretty" yaml:"log_pretty"`
	DefaultRoom       string        `mapstructure:"default_room" yaml:"default_room"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8025",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "heartline.db",
		LogLevel:          "info",
		LogPretty:         true,
		DefaultRoom:       "public",
		HistoryLimit:      50,
		JWTSecret:         "change-me",
		JWTIssuer:         "heartline",
		JWTAudience:       "heartline-client",
	}
}
