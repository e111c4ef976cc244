// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PhaseADCLength is the minimum GET_PHASE_I_AD payload
const PhaseADCLength = 6

// Version is the raw GET_VERSION payload
type Version struct {
	Raw []byte
}

// String returns the version bytes as hex
func (v Version) String() string {
	return hex.EncodeToString(v.Raw)
}

// PhaseADC holds the raw phase current ADC counts
type PhaseADC struct {
	A uint16
	B uint16
	C uint16
}

// DecodeVersion decodes a GET_VERSION (0x11) payload
func DecodeVersion(data []byte) (Version, error) {
	if len(data) == 0 {
		return Version{}, lengthError(CmdGetVersion, 0, 1, false)
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return Version{Raw: raw}, nil
}

// DecodePhaseADC decodes a GET_PHASE_I_AD (0x35) payload: three big-endian
// 16-bit counts for phases A, B and C.
func DecodePhaseADC(data []byte) (PhaseADC, error) {
	if len(data) < PhaseADCLength {
		return PhaseADC{}, lengthError(CmdGetPhaseIAD, len(data), PhaseADCLength, false)
	}
	return PhaseADC{
		A: binary.BigEndian.Uint16(data[0:2]),
		B: binary.BigEndian.Uint16(data[2:4]),
		C: binary.BigEndian.Uint16(data[4:6]),
	}, nil
}

// DecodeIdentifyStatus decodes a CHECK_IDENTIFY_STATUS (0x44) payload
func DecodeIdentifyStatus(data []byte) (IdentifyStatus, error) {
	if len(data) < 1 {
		return 0, lengthError(CmdCheckIdentifyStatus, 0, 1, false)
	}
	return IdentifyStatus(data[0]), nil
}

// DecodeResponse decodes data with the decoder registered for cmd.
// Commands without a payload layout (identify enter/quit, config write)
// return the raw bytes.
func DecodeResponse(cmd Command, data []byte) (interface{}, error) {
	switch cmd {
	case CmdMonitorOne:
		return DecodeMonitorOne(data)
	case CmdMonitorTwo:
		return DecodeMonitorTwo(data)
	case CmdMonitorThree:
		return DecodeMonitorThree(data)
	case CmdGetVersion:
		return DecodeVersion(data)
	case CmdGetPhaseIAD:
		return DecodePhaseADC(data)
	case CmdCheckIdentifyStatus:
		return DecodeIdentifyStatus(data)
	case CmdReadConfig:
		return DecodeConfig(data), nil
	case CmdEntryIdentify, CmdQuitIdentify, CmdWriteConfig:
		return data, nil
	default:
		return nil, fmt.Errorf("no decoder for %s", cmd)
	}
}
