// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import "fmt"

// Decoder states (internal)
const (
	stateCommand = iota
	stateLength
	stateData
	stateChecksum
)

// Decoder reassembles response frames from a byte stream that may arrive in
// arbitrary fragments. The protocol has no start marker, so the first byte
// after a Reset is taken as a command byte.
type Decoder struct {
	state  int
	length int
	buffer []byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateCommand,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset discards any partial frame
func (d *Decoder) Reset() {
	d.state = stateCommand
	d.length = 0
	d.buffer = d.buffer[:0]
}

// Pending returns the number of bytes held for an incomplete frame
func (d *Decoder) Pending() int {
	return len(d.buffer)
}

// GetRawBytes returns the bytes accumulated for the current frame
func (d *Decoder) GetRawBytes() []byte {
	return d.buffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if the frame is malformed or fails its checksum; the
// decoder is reset either way once a frame completes.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.buffer = append(d.buffer, b)

	switch d.state {
	case stateCommand:
		d.state = stateLength
		return nil, nil

	case stateLength:
		if int(b) > MaxDataLength {
			d.Reset()
			return nil, fmt.Errorf("%w: declared %d (max %d)", ErrUnknownLength, b, MaxDataLength)
		}
		d.length = int(b)
		if d.length == 0 {
			d.state = stateChecksum
		} else {
			d.state = stateData
		}
		return nil, nil

	case stateData:
		if len(d.buffer) >= d.length+2 {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		frame, err := ParseFrame(d.buffer)
		d.Reset()
		return frame, err

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds every byte of p through DecodeByte and returns the first
// completed frame along with the number of bytes consumed.
func (d *Decoder) Decode(p []byte) (*Frame, int, error) {
	for i, b := range p {
		frame, err := d.DecodeByte(b)
		if err != nil || frame != nil {
			return frame, i + 1, err
		}
	}
	return nil, len(p), nil
}
