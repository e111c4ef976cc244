// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import "strings"

// ErrorMask is the 16-bit fault word from MONITOR_THREE. Each set bit names
// one active controller fault.
type ErrorMask uint16

// Fault bits. Bits 3, 8 and 11-14 are reserved and never reported.
const (
	FaultIdentification     ErrorMask = 1 << 0
	FaultOverVoltage        ErrorMask = 1 << 1
	FaultLowVoltage         ErrorMask = 1 << 2
	FaultStall              ErrorMask = 1 << 4
	FaultInternalVoltage    ErrorMask = 1 << 5
	FaultControllerOverTemp ErrorMask = 1 << 6
	FaultThrottleStartup    ErrorMask = 1 << 7
	FaultInternalReset      ErrorMask = 1 << 9
	FaultHallSensor         ErrorMask = 1 << 10
	FaultMotorOverTemp      ErrorMask = 1 << 15
	faultKnownBits          ErrorMask = FaultIdentification | FaultOverVoltage | FaultLowVoltage | FaultStall | FaultInternalVoltage | FaultControllerOverTemp | FaultThrottleStartup | FaultInternalReset | FaultHallSensor | FaultMotorOverTemp
)

// faultNames is ordered by bit so Names is stable.
var faultNames = []struct {
	bit  ErrorMask
	name string
}{
	{FaultIdentification, "Identification Error"},
	{FaultOverVoltage, "Over Voltage"},
	{FaultLowVoltage, "Low Voltage"},
	{FaultStall, "Stall"},
	{FaultInternalVoltage, "Internal Voltage Fault"},
	{FaultControllerOverTemp, "Controller Over Temp"},
	{FaultThrottleStartup, "Throttle Error (Startup)"},
	{FaultInternalReset, "Internal Reset"},
	{FaultHallSensor, "Hall Sensor Error"},
	{FaultMotorOverTemp, "Motor Over Temp"},
}

// Names returns the names of the set fault bits in ascending bit order.
// Reserved bits are ignored. A zero mask yields an empty, non-nil slice.
func (m ErrorMask) Names() []string {
	names := []string{}
	for _, f := range faultNames {
		if m&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// Has reports whether every bit in fault is set
func (m ErrorMask) Has(fault ErrorMask) bool {
	return m&fault == fault
}

// Active reports whether any documented fault bit is set
func (m ErrorMask) Active() bool {
	return m&faultKnownBits != 0
}

// String joins the fault names, or returns "none"
func (m ErrorMask) String() string {
	names := m.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// DecodeErrors is a shorthand for ErrorMask(word).Names()
func DecodeErrors(word uint16) []string {
	return ErrorMask(word).Names()
}
