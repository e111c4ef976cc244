// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"fmt"
	"time"
)

// Frame is one validated protocol message
type Frame struct {
	command   Command
	data      []byte
	checksum  byte
	timestamp time.Time
}

// NewFrame creates a frame for cmd carrying data. The checksum is computed.
func NewFrame(cmd Command, data []byte) (*Frame, error) {
	if len(data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDataLength, len(data))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Frame{
		command:   cmd,
		data:      buf,
		checksum:  frameChecksum(cmd, buf),
		timestamp: time.Now(),
	}, nil
}

// Command returns the frame's command byte
func (f *Frame) Command() Command {
	return f.command
}

// Length returns the frame's declared data length
func (f *Frame) Length() uint8 {
	return uint8(len(f.data))
}

// Data returns the frame's data bytes
func (f *Frame) Data() []byte {
	return f.data
}

// Checksum returns the frame's checksum byte
func (f *Frame) Checksum() byte {
	return f.checksum
}

// Timestamp returns when the frame was built or decoded
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Bytes returns the wire encoding of the frame
func (f *Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.data)+FrameOverhead)
	out = append(out, byte(f.command), byte(len(f.data)))
	out = append(out, f.data...)
	return append(out, f.checksum)
}

// EncodeFrame builds the wire bytes [cmd][len][data...][checksum].
func EncodeFrame(cmd Command, data []byte) ([]byte, error) {
	f, err := NewFrame(cmd, data)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// DecodeFrame validates a complete frame and returns its command and a copy of
// its data.
//
// The checksum is verified before the length byte is trusted, so any single
// corrupted bit reports ErrChecksum, including bits in the length byte.
func DecodeFrame(raw []byte) (Command, []byte, error) {
	if len(raw) < FrameOverhead {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(raw))
	}

	cmd := Command(raw[0])
	length := int(raw[1])
	last := len(raw) - 1

	var expected byte
	if length == 0 && len(raw) == FrameOverhead {
		// Zero-length frames carry the command byte as their checksum
		expected = raw[0]
	} else {
		expected = Checksum(raw[:last])
	}
	if raw[last] != expected {
		return 0, nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, expected, raw[last])
	}

	if length > MaxDataLength {
		return 0, nil, fmt.Errorf("%w: declared %d (max %d)", ErrUnknownLength, length, MaxDataLength)
	}
	if len(raw) < length+FrameOverhead {
		return 0, nil, fmt.Errorf("%w: declared %d data bytes, have %d", ErrFrameTooShort, length, len(raw)-FrameOverhead)
	}
	if len(raw) > length+FrameOverhead {
		return 0, nil, fmt.Errorf("%w: declared %d data bytes, have %d", ErrUnknownLength, length, len(raw)-FrameOverhead)
	}

	data := make([]byte, length)
	copy(data, raw[2:2+length])
	return cmd, data, nil
}

// ParseFrame is DecodeFrame returning a Frame
func ParseFrame(raw []byte) (*Frame, error) {
	cmd, data, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return &Frame{
		command:   cmd,
		data:      data,
		checksum:  raw[len(raw)-1],
		timestamp: time.Now(),
	}, nil
}

func frameChecksum(cmd Command, data []byte) byte {
	if len(data) == 0 {
		return byte(cmd)
	}
	return byte(cmd) + byte(len(data)) + Checksum(data)
}
