// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// TUI model
type monitorModel struct {
	connInfo      string
	interval      time.Duration
	tireDiameter  float64
	stats         *kelly.Statistics
	snapshot      *kelly.MonitorSnapshot
	anomalies     []kelly.ValidationError
	lastAnomalies string
	connected     bool
	started       time.Time
	eventLog      []eventLogEntry
	maxLogEntries int
	throttleBar   progress.Model
	brakeBar      progress.Model
	width         int
	height        int
	quitting      bool
}

type tickMsg time.Time

func initialMonitorModel(connInfo string, interval time.Duration, tireDiameter float64, stats *kelly.Statistics) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		interval:      interval,
		tireDiameter:  tireDiameter,
		stats:         stats,
		connected:     true,
		started:       time.Now(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		throttleBar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		brakeBar:      progress.New(progress.WithGradient("#FFB347", "#FF5F5F"), progress.WithWidth(30)),
		width:         80,
		height:        24,
	}
}

func runMonitorTUI(ml *monitorLoop, connInfo string) error {
	// Statistics are always on screen
	ml.cfg.StatsInterval = 0

	m := initialMonitorModel(connInfo, ml.cfg.Interval, ml.cfg.TireDiameter, ml.stats)
	p := tea.NewProgram(m, tea.WithAltScreen())
	ml.send = p.Send

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ml.run()
	}()

	_, err := p.Run()
	close(ml.done)
	<-stopped

	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tickCmd()

	case snapshotMsg:
		s := msg.snapshot
		m.snapshot = &s
		m.anomalies = msg.anomalies

		// Log anomalies when they change, not on every read
		var key []string
		for _, a := range msg.anomalies {
			key = append(key, a.Message)
		}
		if joined := strings.Join(key, "|"); joined != m.lastAnomalies {
			for _, a := range msg.anomalies {
				m.addLogEntry(a.Message, true)
			}
			if joined == "" && m.lastAnomalies != "" {
				m.addLogEntry("All anomalies cleared", false)
			}
			m.lastAnomalies = joined
		}

	case exchangeErrorMsg:
		m.addLogEntry(fmt.Sprintf("EXCHANGE FAILED: %v", msg.err), true)

	case connectionLostMsg:
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)

	case reconnectedMsg:
		m.connected = true
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected: "+msg.connInfo, false)
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// formatUptime renders a duration as "1 hour, 2 minutes and 3 seconds"
func formatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	units := []struct {
		name    string
		seconds int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := total / u.seconds
		total %= u.seconds
		if n == 0 && !(u.seconds == 1 && len(parts) == 0) {
			continue
		}
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("KELLYSTAT - LIVE MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Interval: %s | 'r' resets statistics | 'q' quits",
		m.connInfo, m.interval)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(valueStyle.Render("✓ Connected"))
	} else {
		s.WriteString(warningStyle.Render("⏳ Reconnecting..."))
	}
	s.WriteString(headerStyle.Render(" for " + formatUptime(time.Since(m.started))))
	s.WriteString("\n\n")

	// Live data
	if m.snapshot == nil {
		s.WriteString(warningStyle.Render("Waiting for first monitor read..."))
		s.WriteString("\n\n")
	} else {
		snap := m.snapshot
		live := strings.Builder{}

		live.WriteString(fmt.Sprintf("%s %s %3d%%\n",
			labelStyle.Render("Throttle:"), m.throttleBar.ViewAs(clampPercent(float64(snap.Throttle)/100)), snap.Throttle))
		live.WriteString(fmt.Sprintf("%s %s %3d\n",
			labelStyle.Render("Brake:   "), m.brakeBar.ViewAs(clampPercent(float64(snap.BrakePedal)/255)), snap.BrakePedal))
		live.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Speed:"), valueStyle.Render(fmt.Sprintf("%d RPM (%.1f MPH)", snap.RPM, kelly.FormatSpeedMPH(snap.RPM, m.tireDiameter))),
			labelStyle.Render("Current:"), valueStyle.Render(fmt.Sprintf("%d A", snap.PhaseCurrent))))
		live.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%d V", snap.BatteryVoltage)),
			labelStyle.Render("Motor:"), valueStyle.Render(fmt.Sprintf("%d°C", snap.MotorTemp)),
			labelStyle.Render("Controller:"), valueStyle.Render(fmt.Sprintf("%d°C", snap.ControllerTemp))))
		live.WriteString(fmt.Sprintf("%s %s   %s brake1=%s brake2=%s foot=%s   %s %d%d%d\n",
			labelStyle.Render("Direction:"), valueStyle.Render(snap.Direction()),
			labelStyle.Render("Switches:"), onOffText(snap.BrakeSwitch1), onOffText(snap.BrakeSwitch2), onOffText(snap.FootSwitch),
			labelStyle.Render("Hall:"), bitValue(snap.HallA), bitValue(snap.HallB), bitValue(snap.HallC)))

		if snap.ErrorCode.Active() {
			live.WriteString(fmt.Sprintf("%s %s",
				labelStyle.Render("Faults:"), errorStyle.Render(fmt.Sprintf("%s (0x%04X)", snap.ErrorCode, uint16(snap.ErrorCode)))))
		} else {
			live.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Faults:"), valueStyle.Render("none")))
		}

		s.WriteString(boxStyle.Render(live.String()))
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.stats.Snapshot()
	stats := strings.Builder{}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Exchanges:"), valueStyle.Render(fmt.Sprintf("%d", st.Exchanges)),
		labelStyle.Render("OK:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.Successes, st.SuccessPercent())),
		labelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", st.Failures)),
	))
	if st.FailedAttempts() > 0 {
		stats.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d, %s: %d)\n",
			labelStyle.Render("Retries:"), warningStyle.Render(fmt.Sprintf("%d", st.Retries)),
			headerStyle.Render("checksum"), st.ChecksumErrors,
			headerStyle.Render("timeout"), st.Timeouts,
			headerStyle.Render("malformed"), st.MalformedFrames,
			headerStyle.Render("echo"), st.EchoMismatches,
			headerStyle.Render("transport"), st.TransportErrors,
		))
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Exchange Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", st.ExchangeRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			ts := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(ts), warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func onOffText(b bool) string {
	if b {
		return "ON"
	}
	return "off"
}

func bitValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
