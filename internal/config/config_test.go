// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, 300*time.Millisecond, cfg.Exchange.Timeout)
	assert.Equal(t, 2, cfg.Exchange.Retries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, 12.0, cfg.Monitor.TireDiameter)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kelly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  port: /dev/ttyUSB1
exchange:
  timeout: 500ms
  retries: 4
logging:
  level: debug
  format: json
monitor:
  tireDiameter: 10.5
metrics:
  addr: ":9120"
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, 500*time.Millisecond, cfg.Exchange.Timeout)
	assert.Equal(t, 4, cfg.Exchange.Retries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10.5, cfg.Monitor.TireDiameter)
	assert.Equal(t, ":9120", cfg.Metrics.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KELLY_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("KELLY_EXCHANGE_RETRIES", "5")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 5, cfg.Exchange.Retries)
}

func TestLoadFlagsWin(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KELLY_SERIAL_PORT", "/dev/ttyACM0")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("port", "p", "", "")
	flags.Duration("timeout", 300*time.Millisecond, "")
	flags.Int("retries", 2, "")
	require.NoError(t, flags.Parse([]string{"--port", "/dev/ttyUSB9", "--timeout", "1s"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB9", cfg.Serial.Port)
	assert.Equal(t, time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, 2, cfg.Exchange.Retries)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	bad := *cfg
	bad.Exchange.Timeout = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Exchange.Retries = -1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Serial.Baud = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Monitor.TireDiameter = 0
	assert.Error(t, bad.Validate())
}
