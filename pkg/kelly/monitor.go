// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Payload lengths for the monitor packets. MONITOR_ONE is fixed; the other two
// are the minimum the decoders read (firmware pads them).
const (
	MonitorOneLength   = 16
	MonitorTwoLength   = 6
	MonitorThreeLength = 2
)

// TemperatureBias is subtracted from raw temperature bytes. Controllers seen so
// far report plain degrees Celsius, so the bias is zero; it has not been
// verified against every firmware.
const TemperatureBias = 0

// MONITOR_ONE byte offsets
const (
	m1Throttle        = 0
	m1BrakePedal      = 1
	m1BrakeSwitch1    = 2
	m1FootSwitch      = 3
	m1ForwardSwitch   = 4
	m1ReverseSwitch   = 5
	m1HallA           = 6
	m1HallB           = 7
	m1HallC           = 8
	m1BatteryVoltage  = 9
	m1MotorTemp       = 10
	m1ControllerTemp  = 11
	m1SetDirection    = 12
	m1ActualDirection = 13
	m1BrakeSwitch2    = 14
	m1LowSpeed        = 15
)

// Switch, hall and direction flags live in bit 0 of their byte.
const flagBit = 0

// MONITOR_TWO / MONITOR_THREE offsets
const (
	m2RPM          = 3
	m2PhaseCurrent = 5
	m3ErrorCode    = 0
)

// MonitorOne is the decoded MONITOR_ONE payload
type MonitorOne struct {
	Throttle        uint8 // percent
	BrakePedal      uint8
	BrakeSwitch1    bool
	FootSwitch      bool
	Forward         bool
	Reverse         bool
	HallA           bool
	HallB           bool
	HallC           bool
	BatteryVoltage  uint8 // volts
	MotorTemp       int   // °C
	ControllerTemp  int   // °C
	SetDirection    bool
	ActualDirection bool
	BrakeSwitch2    bool
	LowSpeed        bool
}

// MonitorTwo is the decoded MONITOR_TWO payload
type MonitorTwo struct {
	RPM          uint16
	PhaseCurrent uint8 // amps
}

// MonitorThree is the decoded MONITOR_THREE payload
type MonitorThree struct {
	ErrorCode ErrorMask
}

// MonitorSnapshot combines one read of all three monitor packets
type MonitorSnapshot struct {
	MonitorOne
	MonitorTwo
	MonitorThree

	Errors    []string
	Timestamp time.Time
}

// NewMonitorSnapshot merges the three monitor packets read at time at
func NewMonitorSnapshot(m1 MonitorOne, m2 MonitorTwo, m3 MonitorThree, at time.Time) MonitorSnapshot {
	return MonitorSnapshot{
		MonitorOne:   m1,
		MonitorTwo:   m2,
		MonitorThree: m3,
		Errors:       m3.ErrorCode.Names(),
		Timestamp:    at,
	}
}

// Direction returns "FWD", "REV" or "N" from the direction switches
func (s MonitorSnapshot) Direction() string {
	switch {
	case s.Forward:
		return "FWD"
	case s.Reverse:
		return "REV"
	default:
		return "N"
	}
}

// DecodeMonitorOne decodes a MONITOR_ONE (0x3A) payload
func DecodeMonitorOne(data []byte) (MonitorOne, error) {
	if len(data) != MonitorOneLength {
		return MonitorOne{}, lengthError(CmdMonitorOne, len(data), MonitorOneLength, true)
	}

	return MonitorOne{
		Throttle:        data[m1Throttle],
		BrakePedal:      data[m1BrakePedal],
		BrakeSwitch1:    flag(data, m1BrakeSwitch1),
		FootSwitch:      flag(data, m1FootSwitch),
		Forward:         flag(data, m1ForwardSwitch),
		Reverse:         flag(data, m1ReverseSwitch),
		HallA:           flag(data, m1HallA),
		HallB:           flag(data, m1HallB),
		HallC:           flag(data, m1HallC),
		BatteryVoltage:  data[m1BatteryVoltage],
		MotorTemp:       int(data[m1MotorTemp]) - TemperatureBias,
		ControllerTemp:  int(data[m1ControllerTemp]) - TemperatureBias,
		SetDirection:    flag(data, m1SetDirection),
		ActualDirection: flag(data, m1ActualDirection),
		BrakeSwitch2:    flag(data, m1BrakeSwitch2),
		LowSpeed:        flag(data, m1LowSpeed),
	}, nil
}

// DecodeMonitorTwo decodes a MONITOR_TWO (0x3B) payload.
// RPM is big-endian at bytes 3-4, phase current is byte 5.
func DecodeMonitorTwo(data []byte) (MonitorTwo, error) {
	if len(data) < MonitorTwoLength {
		return MonitorTwo{}, lengthError(CmdMonitorTwo, len(data), MonitorTwoLength, false)
	}

	return MonitorTwo{
		RPM:          binary.BigEndian.Uint16(data[m2RPM : m2RPM+2]),
		PhaseCurrent: data[m2PhaseCurrent],
	}, nil
}

// DecodeMonitorThree decodes a MONITOR_THREE (0x3C) payload.
// The error word is big-endian at bytes 0-1.
func DecodeMonitorThree(data []byte) (MonitorThree, error) {
	if len(data) < MonitorThreeLength {
		return MonitorThree{}, lengthError(CmdMonitorThree, len(data), MonitorThreeLength, false)
	}

	return MonitorThree{
		ErrorCode: ErrorMask(binary.BigEndian.Uint16(data[m3ErrorCode : m3ErrorCode+2])),
	}, nil
}

func flag(data []byte, offset int) bool {
	return (data[offset]>>flagBit)&0x01 == 1
}

func lengthError(cmd Command, got, want int, exact bool) error {
	if exact {
		return fmt.Errorf("%w: %s payload is %d bytes (expected %d)", ErrUnexpectedLength, cmd, got, want)
	}
	return fmt.Errorf("%w: %s payload is %d bytes (expected at least %d)", ErrUnexpectedLength, cmd, got, want)
}
