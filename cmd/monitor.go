// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/Thermoquad/kellystat/internal/config"
	"github.com/Thermoquad/kellystat/internal/metrics"
	"github.com/Thermoquad/kellystat/internal/recorder"
	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var monitorTUI bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously read live controller data",
	Long: `Poll MONITOR_ONE, MONITOR_TWO and MONITOR_THREE at a fixed interval and
display the merged snapshot.

Features:
  - Text output or a terminal UI (--tui)
  - Anomaly detection (implausible RPM, throttle or temperature, active faults)
  - Exchange statistics (retries, checksum errors, timeouts)
  - Optional CBOR recording of every snapshot (--record)
  - Optional Prometheus endpoint (--metrics-addr)
  - Automatic reconnection on connection loss`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	f := monitorCmd.Flags()
	f.Duration("interval", 500*time.Millisecond, "Time between monitor reads")
	f.Duration("stats-interval", 10*time.Second, "Statistics print interval in text mode (0 disables)")
	f.Float64("tire-diameter", kelly.DefaultTireDiameter, "Tire diameter in inches for the MPH estimate")
	f.String("record", "", "Record snapshots to a CBOR file")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9120)")
	f.BoolVar(&monitorTUI, "tui", false, "Use terminal UI")
}

// Messages shared by the text printer and the TUI
type snapshotMsg struct {
	snapshot  kelly.MonitorSnapshot
	anomalies []kelly.ValidationError
}

type exchangeErrorMsg struct {
	at  time.Time
	err error
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

type statsMsg kelly.StatisticsSnapshot

// monitorLoop polls the controller and reconnects when the transport dies
type monitorLoop struct {
	cfg     config.MonitorConfig
	stats   *kelly.Statistics
	metrics *metrics.MonitorMetrics
	rec     *recorder.Writer
	send    func(tea.Msg)
	done    chan struct{}

	mu   sync.Mutex
	sess *session
}

func (ml *monitorLoop) getSession() *session {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.sess
}

func (ml *monitorLoop) setSession(s *session) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.sess = s
}

func (ml *monitorLoop) driverOptions() []kelly.Option {
	return []kelly.Option{
		kelly.WithStatistics(ml.stats),
		kelly.WithObserver(ml.observe),
	}
}

// observe feeds every finished exchange to metrics and the recording
func (ml *monitorLoop) observe(r kelly.ExchangeResult) {
	if ml.metrics != nil {
		ml.metrics.ObserveExchange(r)
	}
	if ml.rec != nil && !r.Success() {
		if err := ml.rec.WriteExchange(r); err != nil {
			logger.Warn("failed to record exchange", zap.Error(err))
		}
	}
}

func (ml *monitorLoop) run() {
	ticker := time.NewTicker(ml.cfg.Interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if ml.cfg.StatsInterval > 0 {
		statsTicker := time.NewTicker(ml.cfg.StatsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	if !ml.poll() {
		return
	}
	for {
		select {
		case <-ml.done:
			return
		case <-statsC:
			ml.send(statsMsg(ml.stats.Snapshot()))
		case <-ticker.C:
			if !ml.poll() {
				return
			}
		}
	}
}

// poll performs one monitor read. It returns false if shutdown was
// requested while reconnecting.
func (ml *monitorLoop) poll() bool {
	snap, err := ml.getSession().controller.ReadMonitor()
	if err != nil {
		if connectionLost(err) {
			ml.send(connectionLostMsg{err: err})
			return ml.reconnect()
		}
		ml.send(exchangeErrorMsg{at: time.Now(), err: err})
		return true
	}

	if ml.metrics != nil {
		ml.metrics.ObserveSnapshot(snap)
	}
	if ml.rec != nil {
		if err := ml.rec.WriteSnapshot(snap); err != nil {
			logger.Warn("failed to record snapshot", zap.Error(err))
		}
	}

	ml.send(snapshotMsg{snapshot: snap, anomalies: kelly.ValidateSnapshot(snap)})
	return true
}

// reconnect retries with exponential backoff until a session opens or
// shutdown is requested
func (ml *monitorLoop) reconnect() bool {
	if s := ml.getSession(); s != nil {
		s.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ml.done:
			return false
		case <-time.After(backoff):
		}

		s, err := openSession(nil, ml.driverOptions()...)
		if err == nil {
			ml.setSession(s)
			if ml.metrics != nil {
				ml.metrics.Reconnects.Inc()
			}
			ml.send(reconnectedMsg{connInfo: s.info})
			return true
		}
		logger.Debug("reconnect failed", zap.Duration("backoff", backoff), zap.Error(err))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// connectionLost reports whether err means the transport is gone rather
// than a single bad exchange
func connectionLost(err error) bool {
	var portErr *serial.PortError
	return errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, io.EOF) ||
		errors.As(err, &portErr)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := appConfig.Monitor

	ml := &monitorLoop{
		cfg:   cfg,
		stats: kelly.NewStatistics(),
		done:  make(chan struct{}),
	}

	if appConfig.Metrics.Addr != "" {
		reg := metrics.NewRegistry()
		ml.metrics = metrics.NewMonitorMetrics(reg)
		go func() {
			if err := metrics.Serve(appConfig.Metrics.Addr, appConfig.Metrics.Path, reg); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics",
			zap.String("addr", appConfig.Metrics.Addr),
			zap.String("path", appConfig.Metrics.Path))
	}

	sess, err := openSession(nil, ml.driverOptions()...)
	if err != nil {
		return err
	}
	ml.setSession(sess)
	defer func() {
		if s := ml.getSession(); s != nil {
			s.Close()
		}
	}()

	if cfg.Record != "" {
		rec, err := recorder.Create(cfg.Record, sess.info)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("failed to close recording", zap.Error(err))
			}
		}()
		ml.rec = rec
	}

	if monitorTUI {
		return runMonitorTUI(ml, sess.info)
	}
	return runMonitorText(ml, sess.info)
}

// runMonitorText prints every snapshot until interrupted
func runMonitorText(ml *monitorLoop, connInfo string) error {
	cfg := ml.cfg

	fmt.Printf("Kellystat - Monitor Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Interval: %s\n", cfg.Interval)
	if cfg.StatsInterval > 0 {
		fmt.Printf("Statistics interval: %s\n", cfg.StatsInterval)
	}
	if cfg.Record != "" {
		fmt.Printf("Recording: %s\n", cfg.Record)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		close(ml.done)
	}()

	ml.send = func(msg tea.Msg) {
		printMonitorEvent(msg, cfg.TireDiameter)
	}
	ml.run()

	fmt.Println()
	fmt.Print(ml.stats.String())
	return nil
}

// printMonitorEvent prints a monitor message in text mode
func printMonitorEvent(msg tea.Msg, tireDiameter float64) {
	switch msg := msg.(type) {
	case snapshotMsg:
		fmt.Printf("[%s] %s\n", timestamp(msg.snapshot.Timestamp), monitorLine(msg.snapshot, tireDiameter))
		for i, a := range msg.anomalies {
			color := "1;33"
			if a.Type == kelly.AnomalyControllerFault {
				color = "1;31"
			}
			fmt.Printf("  Issue %d: \033[%sm%s\033[0m\n", i+1, color, a.Message)
		}

	case exchangeErrorMsg:
		fmt.Printf("[%s] \033[1;31mEXCHANGE FAILED:\033[0m %v\n", timestamp(msg.at), msg.err)

	case connectionLostMsg:
		fmt.Printf("[%s] \033[1;31mCONNECTION LOST:\033[0m %v (reconnecting)\n", timestamp(time.Now()), msg.err)

	case reconnectedMsg:
		fmt.Printf("[%s] \033[1;32mRECONNECTED:\033[0m %s\n", timestamp(time.Now()), msg.connInfo)

	case statsMsg:
		fmt.Println()
		fmt.Print(kelly.StatisticsSnapshot(msg).String())
		fmt.Println()
	}
}

// monitorLine renders a snapshot on a single line
func monitorLine(s kelly.MonitorSnapshot, tireDiameter float64) string {
	return fmt.Sprintf("throttle=%d%% brake=%d rpm=%d (%.1f MPH) current=%dA battery=%dV motor=%d°C ctrl=%d°C dir=%s errors=%s",
		s.Throttle, s.BrakePedal, s.RPM, kelly.FormatSpeedMPH(s.RPM, tireDiameter),
		s.PhaseCurrent, s.BatteryVoltage, s.MotorTemp, s.ControllerTemp,
		s.Direction(), s.ErrorCode)
}
