// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads kellystat runtime settings from defaults, an optional
// config file, KELLY_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

// EnvPrefix prefixes every environment override (KELLY_SERIAL_PORT, ...)
const EnvPrefix = "KELLY"

// SerialConfig selects the serial port
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// WebSocketConfig selects a serial-over-WebSocket bridge
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

// ExchangeConfig tunes the request/response driver
type ExchangeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// LumberjackConfig configures the rotated log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets log level and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MonitorConfig drives the monitor loop
type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	StatsInterval time.Duration `mapstructure:"statsInterval"`
	TireDiameter  float64       `mapstructure:"tireDiameter"`
	Record        string        `mapstructure:"record"`
}

// MetricsConfig exposes monitor values to Prometheus. An empty Addr disables
// the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Config is the top-level configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"port":           "serial.port",
	"baud":           "serial.baud",
	"url":            "websocket.url",
	"username":       "websocket.username",
	"no-ssl-verify":  "websocket.noSSLVerify",
	"timeout":        "exchange.timeout",
	"retries":        "exchange.retries",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"log-file":       "logging.file.filename",
	"interval":       "monitor.interval",
	"stats-interval": "monitor.statsInterval",
	"tire-diameter":  "monitor.tireDiameter",
	"record":         "monitor.record",
	"metrics-addr":   "metrics.addr",
}

// Load reads configuration. path names a config file (YAML, TOML or JSON);
// when empty, kellystat.yaml is looked up in the working directory and
// $HOME/.config/kellystat, and a missing file is not an error. Flags in
// flags that were set on the command line take precedence over everything
// else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kellystat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "kellystat"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the driver cannot work with
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("exchange timeout must be positive, got %s", c.Exchange.Timeout)
	}
	if c.Exchange.Retries < 0 {
		return fmt.Errorf("exchange retries must not be negative, got %d", c.Exchange.Retries)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.TireDiameter <= 0 {
		return fmt.Errorf("tire diameter must be positive, got %g", c.Monitor.TireDiameter)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", kelly.BaudRate)

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.noSSLVerify", false)

	v.SetDefault("exchange.timeout", kelly.DefaultTimeout)
	v.SetDefault("exchange.retries", kelly.DefaultRetries)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("monitor.interval", 500*time.Millisecond)
	v.SetDefault("monitor.statsInterval", 10*time.Second)
	v.SetDefault("monitor.tireDiameter", kelly.DefaultTireDiameter)
	v.SetDefault("monitor.record", "")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}
