// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) MonitorSnapshot {
	t.Helper()
	m1, err := DecodeMonitorOne(monitorOnePayload())
	require.NoError(t, err)
	m2, err := DecodeMonitorTwo(monitorTwoPayload())
	require.NoError(t, err)
	return NewMonitorSnapshot(m1, m2, MonitorThree{}, time.Now())
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatisticsCounters(t *testing.T) {
	s := NewStatistics()

	s.RecordAttempt(fmt.Errorf("x: %w", ErrChecksum))
	s.RecordAttempt(ErrTimeout)
	s.RecordAttempt(ErrFrameTooShort)
	s.RecordAttempt(ErrUnknownLength)
	s.RecordAttempt(ErrUnexpectedCommand)
	s.RecordAttempt(fmt.Errorf("write: broken pipe"))
	s.RecordAttempt(nil)
	s.RecordExchange(ExchangeResult{Attempts: 7, Err: nil})
	s.RecordExchange(ExchangeResult{Attempts: 1, Err: ErrTimeout})

	snap := s.Snapshot()
	assert.Equal(t, uint64(7), snap.Attempts)
	assert.Equal(t, uint64(2), snap.Exchanges)
	assert.Equal(t, uint64(6), snap.Retries)
	assert.Equal(t, uint64(1), snap.Successes)
	assert.Equal(t, uint64(1), snap.Failures)
	assert.Equal(t, uint64(1), snap.ChecksumErrors)
	assert.Equal(t, uint64(1), snap.Timeouts)
	assert.Equal(t, uint64(2), snap.MalformedFrames)
	assert.Equal(t, uint64(1), snap.EchoMismatches)
	assert.Equal(t, uint64(1), snap.TransportErrors)
	assert.Equal(t, uint64(6), snap.FailedAttempts())
	assert.InDelta(t, 50.0, snap.SuccessPercent(), 0.001)

	out := s.String()
	assert.Contains(t, out, "=== Statistics")
	assert.Contains(t, out, "Checksum Errors")
	assert.Contains(t, out, "Echo Mismatches")

	s.Reset()
	assert.Equal(t, uint64(0), s.Snapshot().Attempts)
	assert.Equal(t, 0.0, s.Snapshot().SuccessPercent())
}

func TestStatisticsConcurrent(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordAttempt(nil)
				s.RecordExchange(ExchangeResult{Attempts: 1})
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(800), s.Snapshot().Exchanges)
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateSnapshotClean(t *testing.T) {
	assert.Empty(t, ValidateSnapshot(testSnapshot(t)))
}

func TestValidateSnapshotAnomalies(t *testing.T) {
	s := testSnapshot(t)
	s.RPM = 65000
	s.Throttle = 150
	s.MotorTemp = 200
	s.Reverse = true
	s.ErrorCode = FaultStall

	errs := ValidateSnapshot(s)
	var types []AnomalyType
	for _, e := range errs {
		types = append(types, e.Type)
	}
	assert.Equal(t, []AnomalyType{
		AnomalyHighRPM,
		AnomalyInvalidThrottle,
		AnomalyInvalidTemp,
		AnomalyConflictingDirection,
		AnomalyControllerFault,
	}, types)
	assert.Equal(t, "controller fault: Stall", errs[4].Error())
	assert.Equal(t, "invalid_temp", AnomalyInvalidTemp.String())
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatSpeedMPH(t *testing.T) {
	assert.Equal(t, 0.0, FormatSpeedMPH(0, DefaultTireDiameter))
	// 1000 RPM on a 12" wheel: 12000π in/min
	assert.InDelta(t, 35.70, FormatSpeedMPH(1000, 12), 0.01)
}

func TestFormatSnapshot(t *testing.T) {
	out := FormatSnapshot(testSnapshot(t), DefaultTireDiameter)
	assert.Contains(t, out, "Throttle:      50%")
	assert.Contains(t, out, "3000 RPM (107.1 MPH)")
	assert.Contains(t, out, "Direction:     FWD")
	assert.Contains(t, out, "Errors:        none (0x0000)")
}

func TestFormatFrame(t *testing.T) {
	f, err := NewFrame(CmdGetVersion, []byte{0x01, 0x05})
	require.NoError(t, err)
	out := FormatFrame(f)
	assert.Contains(t, out, "GET_VERSION (0x11) len=2 data=[01 05] checksum=0x19")
}

func TestFormatConfig(t *testing.T) {
	out := FormatConfig(DecodeConfig(fullConfigBlock()))
	assert.Contains(t, out, "Configuration (321 bytes)")
	assert.Contains(t, out, "Module Name:")
	assert.Contains(t, out, "KLS7218N [ro]")
	assert.Contains(t, out, "2.5 s")

	empty := FormatConfig(DecodeConfig(nil))
	assert.Contains(t, empty, "no parameters")
}

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		cmd      Command
		data     []byte
		contains string
	}{
		{CmdMonitorTwo, monitorTwoPayload(), "rpm=3000 phase_current=30A"},
		{CmdMonitorThree, []byte{0x00, 0x04}, "errors=Low Voltage (0x0004)"},
		{CmdGetVersion, []byte{0x01, 0x05}, "GET_VERSION: 0105"},
		{CmdGetPhaseIAD, []byte{0, 1, 0, 2, 0, 3}, "A=1 B=2 C=3"},
		{CmdCheckIdentifyStatus, []byte{0xAA}, "ACTIVE"},
		{CmdEntryIdentify, nil, "ENTRY_IDENTIFY: ok"},
		{CmdMonitorOne, monitorOnePayload(), "throttle=50%"},
		{CmdMonitorOne, []byte{0x01}, "unexpected payload length"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			out := FormatResponse(tt.cmd, tt.data)
			assert.True(t, strings.Contains(out, tt.contains), "got %q", out)
		})
	}
}
