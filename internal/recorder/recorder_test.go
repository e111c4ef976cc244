// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package recorder

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

func testSnapshot() kelly.MonitorSnapshot {
	return kelly.NewMonitorSnapshot(
		kelly.MonitorOne{Throttle: 55, Forward: true, HallA: true, BatteryVoltage: 72, MotorTemp: 41, ControllerTemp: 38},
		kelly.MonitorTwo{RPM: 2500, PhaseCurrent: 60},
		kelly.MonitorThree{ErrorCode: kelly.FaultStall | kelly.FaultLowVoltage},
		time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC),
	)
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "/dev/ttyUSB0")
	require.NoError(t, err)

	snap := testSnapshot()
	require.NoError(t, w.WriteSnapshot(snap))
	require.NoError(t, w.WriteExchange(kelly.ExchangeResult{
		Command:  kelly.CmdMonitorTwo,
		Attempts: 3,
		Duration: 900 * time.Millisecond,
		Err:      errors.New("timed out"),
	}))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, r.Header().Version)
	assert.Equal(t, "/dev/ttyUSB0", r.Header().Source)

	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	got := records[0]
	assert.Equal(t, KindSnapshot, got.Kind)
	require.NotNil(t, got.Snapshot)
	assert.True(t, snap.Timestamp.Equal(got.Time))
	assert.True(t, snap.Timestamp.Equal(got.Snapshot.Timestamp))
	assert.Equal(t, snap.MonitorOne, got.Snapshot.MonitorOne)
	assert.Equal(t, snap.MonitorTwo, got.Snapshot.MonitorTwo)
	assert.Equal(t, snap.ErrorCode, got.Snapshot.ErrorCode)
	assert.Equal(t, []string{"Low Voltage", "Stall"}, got.Snapshot.Errors)

	ex := records[1]
	assert.Equal(t, KindExchange, ex.Kind)
	require.NotNil(t, ex.Exchange)
	assert.Equal(t, kelly.CmdMonitorTwo, ex.Exchange.Command)
	assert.Equal(t, 3, ex.Exchange.Attempts)
	assert.Equal(t, 900*time.Millisecond, ex.Exchange.Duration)
	assert.Equal(t, "timed out", ex.Exchange.Error)
}

func TestTruncatedTail(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "")
	require.NoError(t, err)
	require.NoError(t, w.WriteSnapshot(testSnapshot()))
	require.NoError(t, w.WriteSnapshot(testSnapshot()))

	data := buf.Bytes()
	r, err := NewReader(bytes.NewReader(data[:len(data)-5]))
	require.NoError(t, err)

	records, err := r.ReadAll()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Len(t, records, 1)
}

func TestBadHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, encMode.NewEncoder(&buf).Encode(Header{Version: 99}))
	_, err = NewReader(&buf)
	assert.ErrorContains(t, err, "unsupported recording version 99")
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	w, err := Create(path, "test")
	require.NoError(t, err)
	require.NoError(t, w.WriteSnapshot(testSnapshot()))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReader(f)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2500), rec.Snapshot.RPM)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "snapshot", KindSnapshot.String())
	assert.Equal(t, "unknown(9)", Kind(9).String())
}
