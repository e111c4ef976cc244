// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/kellystat/internal/config"
	"github.com/Thermoquad/kellystat/internal/logging"
	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var (
	cfgFile string
	debug   bool

	// Loaded by the root PersistentPreRunE before any subcommand runs
	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "kellystat",
	Short: "Kelly Motor Controller Diagnostic Tool",
	Long: `Kellystat - talk to Kelly KLS motor controllers over their serial
diagnostic protocol.

Reads live monitor data, controller version and configuration, runs the
identification routine and sends raw commands. Every exchange is a single
request/response pair with checksum validation, a per-attempt timeout and
a bounded number of retries.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the KELLY_PASSWORD
environment variable, or prompted interactively if not set.

Every flag can also be set in kellystat.yaml or through KELLY_* environment
variables (KELLY_SERIAL_PORT, KELLY_EXCHANGE_RETRIES, ...).`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "", "Config file (default ./kellystat.yaml)")
	pf.BoolVarP(&debug, "debug", "d", false, "Log every frame sent and received")

	// Serial connection flags
	pf.StringP("port", "p", "", "Serial port device")
	pf.IntP("baud", "b", kelly.BaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	pf.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.String("username", "", "Username for HTTP Basic auth")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Exchange tuning
	pf.Duration("timeout", kelly.DefaultTimeout, "Per-attempt response timeout")
	pf.Int("retries", kelly.DefaultRetries, "Retries after a failed attempt")

	// Logging
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "console", "Log format (console, json)")
	pf.String("log-file", "", "Also write logs to this file (rotated)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	l, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	appConfig = cfg
	logger = l
	return nil
}

// session is an open transport plus the driver stack built on it
type session struct {
	conn       Connection
	info       string
	controller *kelly.Controller
	stats      *kelly.Statistics
}

func (s *session) Close() error {
	return s.conn.Close()
}

// openSession connects using the loaded configuration and wires a driver
// and controller to the transport. Extra driver options are applied last.
func openSession(controllerOpts []kelly.ControllerOption, opts ...kelly.Option) (*session, error) {
	conn, info, err := OpenConnection(appConfig)
	if err != nil {
		return nil, err
	}

	driverOpts := []kelly.Option{
		kelly.WithTimeout(appConfig.Exchange.Timeout),
		kelly.WithRetries(appConfig.Exchange.Retries),
		kelly.WithLogger(logger.Named("driver")),
		kelly.WithStatistics(kelly.NewStatistics()),
	}
	driverOpts = append(driverOpts, opts...)

	driver := kelly.NewDriver(conn, driverOpts...)
	logger.Debug("session opened",
		zap.String("connection", info),
		zap.Duration("timeout", driver.Timeout()),
		zap.Int("retries", driver.Retries()))

	return &session{
		conn:       conn,
		info:       info,
		controller: kelly.NewController(driver, controllerOpts...),
		stats:      driver.Statistics(),
	}, nil
}

func timestamp(t time.Time) string {
	return t.Format("15:04:05.000")
}
