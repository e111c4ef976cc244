// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import "fmt"

// Plausibility limits for monitor values
const (
	MaxPlausibleRPM         = 60000
	MaxPlausibleThrottle    = 100
	MaxPlausibleTemperature = 170 // °C
)

// AnomalyType represents different types of snapshot anomalies
type AnomalyType int

const (
	AnomalyHighRPM AnomalyType = iota
	AnomalyInvalidThrottle
	AnomalyInvalidTemp
	AnomalyControllerFault
	AnomalyConflictingDirection
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyHighRPM:
		return "high_rpm"
	case AnomalyInvalidThrottle:
		return "invalid_throttle"
	case AnomalyInvalidTemp:
		return "invalid_temp"
	case AnomalyControllerFault:
		return "controller_fault"
	case AnomalyConflictingDirection:
		return "conflicting_direction"
	default:
		return "unknown"
	}
}

// ValidationError represents a snapshot validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateSnapshot detects implausible values and active faults.
// Returns a slice of validation errors (empty if the snapshot is clean)
func ValidateSnapshot(s MonitorSnapshot) []ValidationError {
	errors := []ValidationError{}

	if s.RPM > MaxPlausibleRPM {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighRPM,
			Message: fmt.Sprintf("RPM=%d exceeds %d", s.RPM, MaxPlausibleRPM),
			Details: map[string]interface{}{"rpm": s.RPM, "max": MaxPlausibleRPM},
		})
	}

	if s.Throttle > MaxPlausibleThrottle {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidThrottle,
			Message: fmt.Sprintf("Throttle=%d%% exceeds %d%%", s.Throttle, MaxPlausibleThrottle),
			Details: map[string]interface{}{"throttle": s.Throttle, "max": MaxPlausibleThrottle},
		})
	}

	for _, t := range []struct {
		name  string
		value int
	}{
		{"motor", s.MotorTemp},
		{"controller", s.ControllerTemp},
	} {
		if t.value > MaxPlausibleTemperature {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidTemp,
				Message: fmt.Sprintf("%s temperature=%d°C exceeds %d°C", t.name, t.value, MaxPlausibleTemperature),
				Details: map[string]interface{}{"sensor": t.name, "temp": t.value, "max": MaxPlausibleTemperature},
			})
		}
	}

	if s.Forward && s.Reverse {
		errors = append(errors, ValidationError{
			Type:    AnomalyConflictingDirection,
			Message: "forward and reverse switches both active",
		})
	}

	if s.ErrorCode.Active() {
		errors = append(errors, ValidationError{
			Type:    AnomalyControllerFault,
			Message: fmt.Sprintf("controller fault: %s", s.ErrorCode),
			Details: map[string]interface{}{"code": uint16(s.ErrorCode), "faults": s.ErrorCode.Names()},
		})
	}

	return errors
}

// RangeWarning flags a parameter value outside its documented range. It is
// advisory; the value is still encoded.
type RangeWarning struct {
	Parameter string
	Value     int
	Min       int
	Max       int
}

func newRangeWarning(f ConfigField, v int) RangeWarning {
	return RangeWarning{Parameter: f.Name, Value: v, Min: f.Min, Max: f.Max}
}

// String describes the warning
func (w RangeWarning) String() string {
	return fmt.Sprintf("%s=%d outside range %d-%d", w.Parameter, w.Value, w.Min, w.Max)
}

// ValidateConfig checks every present numeric parameter against its range
func ValidateConfig(b *ConfigBlock) []RangeWarning {
	warnings := []RangeWarning{}
	for _, v := range b.Values() {
		if v.Field.Numeric() && !v.Field.InRange(v.Number) {
			warnings = append(warnings, newRangeWarning(v.Field, v.Number))
		}
	}
	return warnings
}
