// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// DefaultTireDiameter is the wheel diameter in inches used for MPH
const DefaultTireDiameter = 12.0

const inchesPerMile = 63360

// FormatSpeedMPH converts motor RPM to road speed for a directly driven
// wheel of the given diameter
func FormatSpeedMPH(rpm uint16, tireDiameterInches float64) float64 {
	inchesPerMinute := float64(rpm) * tireDiameterInches * math.Pi
	return inchesPerMinute * 60 / inchesPerMile
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (0x%02X) len=%d data=[% X] checksum=0x%02X\n",
		timestamp, f.Command(), uint8(f.Command()), f.Length(), f.Data(), f.Checksum())
}

// FormatSnapshot renders a monitor snapshot as a multi-line block
func FormatSnapshot(s MonitorSnapshot, tireDiameterInches float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] Monitor\n", s.Timestamp.Format("15:04:05.000"))
	fmt.Fprintf(&b, "  Throttle:      %d%%\n", s.Throttle)
	fmt.Fprintf(&b, "  Brake Pedal:   %d\n", s.BrakePedal)
	fmt.Fprintf(&b, "  Speed:         %d RPM (%.1f MPH)\n", s.RPM, FormatSpeedMPH(s.RPM, tireDiameterInches))
	fmt.Fprintf(&b, "  Phase Current: %d A\n", s.PhaseCurrent)
	fmt.Fprintf(&b, "  Battery:       %d V\n", s.BatteryVoltage)
	fmt.Fprintf(&b, "  Motor Temp:    %d°C\n", s.MotorTemp)
	fmt.Fprintf(&b, "  Ctrl Temp:     %d°C\n", s.ControllerTemp)
	fmt.Fprintf(&b, "  Direction:     %s (set=%s actual=%s)\n", s.Direction(), onOff(s.SetDirection), onOff(s.ActualDirection))
	fmt.Fprintf(&b, "  Switches:      brake1=%s brake2=%s foot=%s low_speed=%s\n",
		onOff(s.BrakeSwitch1), onOff(s.BrakeSwitch2), onOff(s.FootSwitch), onOff(s.LowSpeed))
	fmt.Fprintf(&b, "  Hall:          A=%d B=%d C=%d\n", bit(s.HallA), bit(s.HallB), bit(s.HallC))
	fmt.Fprintf(&b, "  Errors:        %s (0x%04X)\n", s.ErrorCode, uint16(s.ErrorCode))

	return b.String()
}

// FormatConfig renders every present parameter, one per line
func FormatConfig(cb *ConfigBlock) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Configuration (%d bytes)\n", cb.Len())
	for _, v := range cb.Values() {
		marker := ""
		if v.Field.ReadOnly {
			marker = " [ro]"
		}
		fmt.Fprintf(&b, "  %-28s %s%s\n", v.Field.Description+":", v.String(), marker)
	}
	if len(cb.Values()) == 0 {
		b.WriteString("  (no parameters in block)\n")
	}
	return b.String()
}

// FormatResponse decodes data for cmd and renders it. Payloads without a
// decoder are shown as hex.
func FormatResponse(cmd Command, data []byte) string {
	decoded, err := DecodeResponse(cmd, data)
	if err != nil {
		return fmt.Sprintf("%s: [% X] (%v)\n", cmd, data, err)
	}

	switch v := decoded.(type) {
	case MonitorOne:
		return fmt.Sprintf("%s: throttle=%d%% brake=%d battery=%dV motor=%d°C ctrl=%d°C fwd=%s rev=%s hall=%d%d%d\n",
			cmd, v.Throttle, v.BrakePedal, v.BatteryVoltage, v.MotorTemp, v.ControllerTemp,
			onOff(v.Forward), onOff(v.Reverse), bit(v.HallA), bit(v.HallB), bit(v.HallC))
	case MonitorTwo:
		return fmt.Sprintf("%s: rpm=%d phase_current=%dA\n", cmd, v.RPM, v.PhaseCurrent)
	case MonitorThree:
		return fmt.Sprintf("%s: errors=%s (0x%04X)\n", cmd, v.ErrorCode, uint16(v.ErrorCode))
	case Version:
		return fmt.Sprintf("%s: %s\n", cmd, v)
	case PhaseADC:
		return fmt.Sprintf("%s: A=%d B=%d C=%d\n", cmd, v.A, v.B, v.C)
	case IdentifyStatus:
		return fmt.Sprintf("%s: %s\n", cmd, v)
	case *ConfigBlock:
		return FormatConfig(v)
	default:
		if len(data) == 0 {
			return fmt.Sprintf("%s: ok\n", cmd)
		}
		return fmt.Sprintf("%s: %s\n", cmd, hex.EncodeToString(data))
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
