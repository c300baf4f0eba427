// Package config loads workstalkd's configuration, layering built-in
// defaults, an optional config file, and environment variables — the
// layered loader flo's own config package left as a TODO ("yaml config not
// supported yet; use JSON for now") when it only had encoding/json to work
// with. We complete that with spf13/viper.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level server configuration.
type Config struct {
	// Port is the TCP listen port for the text protocol (spec §6, default
	// 11300).
	Port int `mapstructure:"port"`

	// HeapSize is the shared capacity of the ready and delay priority
	// queues (spec §4.1, default 16 Mi entries).
	HeapSize int `mapstructure:"heap_size"`

	// MaxJobSize is the largest accepted job body in bytes (spec §4.5,
	// fixed at 65535 by the protocol but kept configurable for embedding
	// and tests).
	MaxJobSize int `mapstructure:"max_job_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// MetricsAddr, if non-empty, serves Prometheus metrics on this
	// address. Empty disables the listener entirely (default).
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:        11300,
		HeapSize:    16 << 20,
		MaxJobSize:  65535,
		LogLevel:    "info",
		LogFormat:   "text",
		MetricsAddr: "",
	}
}

// Load builds a Config from defaults, an optional file at path (JSON, TOML,
// or YAML — viper sniffs the extension), and WORKSTALK_-prefixed
// environment variables, in that order of increasing precedence. path may
// be empty, in which case only defaults and environment are consulted.
func Load(path string) (Config, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("heap_size", d.HeapSize)
	v.SetDefault("max_job_size", d.MaxJobSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_addr", d.MetricsAddr)

	v.SetEnvPrefix("workstalk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
