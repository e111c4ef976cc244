// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{"empty", nil, 0x00},
		{"single byte", []byte{0x3A}, 0x3A},
		{"version response", []byte{0x11, 0x02, 0x01, 0x05}, 0x19},
		{"wraps", []byte{0xFF, 0x02}, 0x01},
		{"all ones", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0xFC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Checksum(tt.data))
		})
	}
}

// ============================================================
// Encode Tests
// ============================================================

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		data     []byte
		expected []byte
	}{
		{"monitor one", CmdMonitorOne, nil, []byte{0x3A, 0x00, 0x3A}},
		{"version", CmdGetVersion, nil, []byte{0x11, 0x00, 0x11}},
		{"read config", CmdReadConfig, []byte{}, []byte{0x4B, 0x00, 0x4B}},
		{"with data", CmdGetVersion, []byte{0x01, 0x05}, []byte{0x11, 0x02, 0x01, 0x05, 0x19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeFrame(tt.cmd, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEncodeFrameEmptyAlwaysEchoesCommand(t *testing.T) {
	for i := 0; i < 256; i++ {
		cmd := Command(i)
		got, err := EncodeFrame(cmd, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(cmd), 0x00, byte(cmd)}, got)
	}
}

func TestEncodeFrameMaxData(t *testing.T) {
	data := make([]byte, MaxDataLength)
	for i := range data {
		data[i] = byte(i + 1)
	}

	got, err := EncodeFrame(CmdWriteConfig, data)
	require.NoError(t, err)
	assert.Len(t, got, MaxFrameSize)
	assert.Equal(t, byte(MaxDataLength), got[1])
	assert.Equal(t, Checksum(got[:len(got)-1]), got[len(got)-1])
}

func TestEncodeFrameTooLong(t *testing.T) {
	_, err := EncodeFrame(CmdWriteConfig, make([]byte, MaxDataLength+1))
	assert.ErrorIs(t, err, ErrInvalidDataLength)
}

func TestNewFrameCopiesData(t *testing.T) {
	data := []byte{0x01, 0x02}
	f, err := NewFrame(CmdGetVersion, data)
	require.NoError(t, err)

	data[0] = 0xFF
	assert.Equal(t, []byte{0x01, 0x02}, f.Data())
	assert.Equal(t, uint8(2), f.Length())
	assert.Equal(t, byte(0x16), f.Checksum())
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecodeFrameEmpty(t *testing.T) {
	cmd, data, err := DecodeFrame([]byte{0x3A, 0x00, 0x3A})
	require.NoError(t, err)
	assert.Equal(t, CmdMonitorOne, cmd)
	assert.Empty(t, data)
}

func TestDecodeFrameEmptyBadChecksum(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0x3A, 0x00, 0x3B})
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected error
	}{
		{"nil", nil, ErrFrameTooShort},
		{"two bytes", []byte{0x3A, 0x00}, ErrFrameTooShort},
		{"bad checksum", []byte{0x11, 0x02, 0x01, 0x05, 0x17}, ErrChecksum},
		{"length over 16", []byte{0x11, 0x11, 0x22}, ErrUnknownLength},
		{"truncated", []byte{0x11, 0x02, 0x01, 0x14}, ErrFrameTooShort},
		{"trailing byte", []byte{0x11, 0x01, 0x01, 0x00, 0x13}, ErrUnknownLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(tt.raw)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestDecodeFrameReturnsCopy(t *testing.T) {
	raw := []byte{0x11, 0x02, 0x01, 0x05, 0x19}
	_, data, err := DecodeFrame(raw)
	require.NoError(t, err)

	raw[2] = 0xFF
	assert.Equal(t, []byte{0x01, 0x05}, data)
}

func TestFrameRoundTripAllLengths(t *testing.T) {
	for _, cmd := range Commands {
		for n := 0; n <= MaxDataLength; n++ {
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(i*37 + n)
			}

			raw, err := EncodeFrame(cmd, data)
			require.NoError(t, err)

			gotCmd, gotData, err := DecodeFrame(raw)
			require.NoError(t, err, "cmd=%s len=%d", cmd, n)
			assert.Equal(t, cmd, gotCmd)
			assert.Equal(t, data, gotData)
		}
	}
}

// Every single-bit flip must surface as a checksum failure, including flips
// in the length byte and in zero-length frames.
func TestDecodeFrameSingleBitFlip(t *testing.T) {
	frames := [][]byte{}
	for _, cmd := range Commands {
		empty, _ := EncodeFrame(cmd, nil)
		frames = append(frames, empty)
	}
	full, _ := EncodeFrame(CmdWriteConfig, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	frames = append(frames, full)
	short, _ := EncodeFrame(CmdGetVersion, []byte{0x01, 0x05})
	frames = append(frames, short)

	for _, frame := range frames {
		for i := range frame {
			for b := uint(0); b < 8; b++ {
				corrupt := append([]byte(nil), frame...)
				corrupt[i] ^= 1 << b

				_, _, err := DecodeFrame(corrupt)
				assert.ErrorIs(t, err, ErrChecksum, "frame=% X byte=%d bit=%d", frame, i, b)
			}
		}
	}
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte{0x44, 0x01, 0xAA, 0xEF})
	require.NoError(t, err)
	assert.Equal(t, CmdCheckIdentifyStatus, f.Command())
	assert.Equal(t, []byte{0xAA}, f.Data())
	assert.Equal(t, byte(0xEF), f.Checksum())
	assert.Equal(t, []byte{0x44, 0x01, 0xAA, 0xEF}, f.Bytes())
	assert.False(t, f.Timestamp().IsZero())
}

// ============================================================
// Byte Decoder Tests
// ============================================================

func TestDecoderSingleFrame(t *testing.T) {
	d := NewDecoder()
	raw := []byte{0x11, 0x02, 0x01, 0x05, 0x19}

	var frame *Frame
	for i, b := range raw {
		f, err := d.DecodeByte(b)
		require.NoError(t, err)
		if i < len(raw)-1 {
			assert.Nil(t, f)
		}
		frame = f
	}

	require.NotNil(t, frame)
	assert.Equal(t, CmdGetVersion, frame.Command())
	assert.Equal(t, []byte{0x01, 0x05}, frame.Data())
	assert.Equal(t, 0, d.Pending())
}

func TestDecoderZeroLength(t *testing.T) {
	d := NewDecoder()
	frame, n, err := d.Decode([]byte{0x43, 0x00, 0x43, 0xFF})
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, 3, n)
	assert.Equal(t, CmdEntryIdentify, frame.Command())
	assert.Empty(t, frame.Data())
}

func TestDecoderBackToBack(t *testing.T) {
	first, _ := EncodeFrame(CmdMonitorThree, []byte{0x00, 0x05})
	second, _ := EncodeFrame(CmdGetVersion, []byte{0x01})
	stream := append(append([]byte(nil), first...), second...)

	d := NewDecoder()
	f1, n1, err := d.Decode(stream)
	require.NoError(t, err)
	require.NotNil(t, f1)
	assert.Equal(t, CmdMonitorThree, f1.Command())

	f2, _, err := d.Decode(stream[n1:])
	require.NoError(t, err)
	require.NotNil(t, f2)
	assert.Equal(t, CmdGetVersion, f2.Command())
}

func TestDecoderLengthTooLarge(t *testing.T) {
	d := NewDecoder()
	_, err := d.DecodeByte(0x3A)
	require.NoError(t, err)
	_, err = d.DecodeByte(0x20)
	assert.ErrorIs(t, err, ErrUnknownLength)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoderChecksumError(t *testing.T) {
	d := NewDecoder()
	frame, _, err := d.Decode([]byte{0x3C, 0x02, 0x00, 0x05, 0x00})
	assert.Nil(t, frame)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.Equal(t, 0, d.Pending())
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder()
	_, _, err := d.Decode([]byte{0x3B, 0x06, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Pending())
	assert.Equal(t, []byte{0x3B, 0x06, 0x00}, d.GetRawBytes())

	d.Reset()
	assert.Equal(t, 0, d.Pending())
}

// ============================================================
// Command Tests
// ============================================================

func TestCommandString(t *testing.T) {
	assert.Equal(t, "MONITOR_ONE", CmdMonitorOne.String())
	assert.Equal(t, "GET_PHASE_I_AD", CmdGetPhaseIAD.String())
	assert.Equal(t, "UNKNOWN(0x99)", Command(0x99).String())
	assert.True(t, CmdWriteConfig.Known())
	assert.False(t, Command(0x00).Known())
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		expected Command
		wantErr  bool
	}{
		{"MONITOR_ONE", CmdMonitorOne, false},
		{"monitor_two", CmdMonitorTwo, false},
		{"0x3C", CmdMonitorThree, false},
		{"17", CmdGetVersion, false},
		{"0x99", 0, true},
		{"bogus", 0, true},
		{"0x1FF", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
