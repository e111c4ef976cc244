// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldKind governs how a configuration parameter's bytes are interpreted
type FieldKind int

// Field kinds
const (
	KindASCII    FieldKind = iota // NUL-padded ASCII text
	KindHex                       // opaque bytes shown as hex
	KindUnsigned                  // big-endian unsigned integer
	KindPercent                   // single byte, percent
	KindEnum                      // single byte, enumerated code
	KindBit                       // one bit of a byte
	KindTenths                    // single byte, 0.1 s units
)

// String returns the kind name
func (k FieldKind) String() string {
	switch k {
	case KindASCII:
		return "ascii"
	case KindHex:
		return "hex"
	case KindUnsigned:
		return "unsigned"
	case KindPercent:
		return "percent"
	case KindEnum:
		return "enum"
	case KindBit:
		return "bit"
	case KindTenths:
		return "tenths"
	default:
		return "unknown"
	}
}

// ConfigField describes one parameter in the configuration block
type ConfigField struct {
	Name        string
	Offset      int
	Width       int  // bytes
	Bit         uint // KindBit only
	Kind        FieldKind
	Min, Max    int
	Unit        string
	ReadOnly    bool
	Description string
	Options     map[int]string // KindEnum and KindBit labels
}

// Numeric reports whether the field holds an integer value
func (f ConfigField) Numeric() bool {
	return f.Kind != KindASCII && f.Kind != KindHex
}

// Scale is the factor from raw value to display units
func (f ConfigField) Scale() float64 {
	if f.Kind == KindTenths {
		return 0.1
	}
	return 1
}

// InRange reports whether n lies inside the documented range
func (f ConfigField) InRange(n int) bool {
	return n >= f.Min && n <= f.Max
}

func (f ConfigField) end() int {
	return f.Offset + f.Width
}

func (f ConfigField) maxRaw() int {
	if f.Kind == KindBit {
		return 1
	}
	return 1<<(8*uint(f.Width)) - 1
}

// ConfigFields is the parameter table, ordered by offset
var ConfigFields = []ConfigField{
	{Name: "module_name", Offset: 0x00, Width: 8, Kind: KindASCII, ReadOnly: true, Description: "Module Name"},
	{Name: "user_name", Offset: 0x08, Width: 4, Kind: KindASCII, ReadOnly: true, Description: "User Name"},
	{Name: "serial_number", Offset: 0x0C, Width: 4, Kind: KindHex, ReadOnly: true, Description: "Serial Number"},
	{Name: "software_version", Offset: 0x10, Width: 4, Kind: KindHex, ReadOnly: true, Description: "Software Version"},
	{Name: "startup_hpedal", Offset: 0x14, Width: 1, Bit: 0, Kind: KindBit, Max: 1, Description: "Startup High Pedal Protection"},
	{Name: "brake_hpedal", Offset: 0x14, Width: 1, Bit: 1, Kind: KindBit, Max: 1, Description: "Brake High Pedal Protection"},
	{Name: "ntl_hpedal", Offset: 0x14, Width: 1, Bit: 2, Kind: KindBit, Max: 1, Description: "Neutral High Pedal Protection"},
	{Name: "foot_switch", Offset: 0x15, Width: 1, Bit: 0, Kind: KindBit, Max: 1, Description: "Foot Switch Enable"},
	{Name: "sw_level", Offset: 0x15, Width: 1, Bit: 1, Kind: KindBit, Max: 1, Description: "Switch Level",
		Options: map[int]string{0: "Low", 1: "High"}},
	{Name: "controller_type", Offset: 0x15, Width: 1, Bit: 3, Kind: KindBit, Max: 1, Description: "Controller Type",
		Options: map[int]string{0: "HIM", 1: "KIM"}},
	{Name: "change_dir", Offset: 0x15, Width: 1, Bit: 7, Kind: KindBit, Max: 1, Description: "Reverse Motor Direction"},
	{Name: "startup_wait_time", Offset: 0x16, Width: 1, Kind: KindUnsigned, Max: 20, Unit: "s", Description: "Startup Wait Time"},
	{Name: "controller_voltage", Offset: 0x17, Width: 2, Kind: KindUnsigned, Max: 612, Unit: "V", ReadOnly: true, Description: "Controller Nominal Voltage"},
	{Name: "low_voltage", Offset: 0x19, Width: 2, Kind: KindUnsigned, Max: 1000, Unit: "V", Description: "Low Voltage Cutoff"},
	{Name: "over_voltage", Offset: 0x1B, Width: 2, Kind: KindUnsigned, Max: 1000, Unit: "V", Description: "Over Voltage Cutoff"},
	{Name: "current_percent", Offset: 0x25, Width: 1, Kind: KindPercent, Min: 20, Max: 100, Unit: "%", Description: "Max Current Percent"},
	{Name: "battery_current_limit", Offset: 0x26, Width: 1, Kind: KindPercent, Min: 20, Max: 100, Unit: "%", Description: "Battery Current Limit"},
	{Name: "tps_low", Offset: 0x5C, Width: 1, Kind: KindPercent, Max: 20, Unit: "%", Description: "TPS Low Fault Threshold"},
	{Name: "tps_high", Offset: 0x5D, Width: 1, Kind: KindPercent, Min: 80, Max: 100, Unit: "%", Description: "TPS High Fault Threshold"},
	{Name: "tps_type", Offset: 0x5F, Width: 1, Kind: KindEnum, Max: 3, Description: "TPS Type",
		Options: map[int]string{0: "None", 1: "0-5V", 2: "1-4V", 3: "0-5K"}},
	{Name: "tps_dead_low", Offset: 0x60, Width: 1, Kind: KindPercent, Max: 80, Unit: "%", Description: "TPS Dead Zone Low"},
	{Name: "tps_dead_high", Offset: 0x61, Width: 1, Kind: KindPercent, Min: 120, Max: 200, Unit: "%", Description: "TPS Dead Zone High"},
	{Name: "max_output_freq", Offset: 0x69, Width: 2, Kind: KindUnsigned, Min: 50, Max: 1000, Unit: "Hz", Description: "Max Output Frequency"},
	{Name: "max_speed", Offset: 0x6B, Width: 2, Kind: KindUnsigned, Max: 60000, Unit: "RPM", Description: "Max Speed"},
	{Name: "max_forward_speed", Offset: 0x6D, Width: 1, Kind: KindPercent, Min: 30, Max: 100, Unit: "%", Description: "Max Forward Speed"},
	{Name: "max_reverse_speed", Offset: 0x6E, Width: 1, Kind: KindPercent, Min: 20, Max: 100, Unit: "%", Description: "Max Reverse Speed"},
	{Name: "regen_brake_percent", Offset: 0xE6, Width: 1, Kind: KindPercent, Max: 50, Unit: "%", Description: "Release TPS Regen Brake"},
	{Name: "neutral_brake_percent", Offset: 0xE7, Width: 1, Kind: KindPercent, Max: 50, Unit: "%", Description: "Neutral Regen Brake"},
	{Name: "accel_time", Offset: 0xEF, Width: 1, Kind: KindTenths, Max: 250, Unit: "s", Description: "Acceleration Time"},
	{Name: "accel_release_time", Offset: 0xF0, Width: 1, Kind: KindTenths, Max: 250, Unit: "s", Description: "Acceleration Release Time"},
	{Name: "brake_time", Offset: 0xF1, Width: 1, Kind: KindTenths, Max: 250, Unit: "s", Description: "Brake Ramp Time"},
	{Name: "brake_release_time", Offset: 0xF2, Width: 1, Kind: KindTenths, Max: 250, Unit: "s", Description: "Brake Release Time"},
	{Name: "motor_poles", Offset: 0x10C, Width: 1, Kind: KindUnsigned, Min: 2, Max: 32, Description: "Motor Poles"},
	{Name: "speed_sensor_type", Offset: 0x10D, Width: 1, Kind: KindEnum, Max: 4, Description: "Speed Sensor",
		Options: map[int]string{0: "None", 1: "Encoder", 2: "Hall", 3: "Resolver"}},
	{Name: "motor_temp_sensor", Offset: 0x13E, Width: 1, Kind: KindEnum, Max: 1, Description: "Motor Temp Sensor",
		Options: map[int]string{0: "None", 1: "KTY83"}},
	{Name: "high_temp_cutoff", Offset: 0x13F, Width: 1, Kind: KindUnsigned, Min: 60, Max: 170, Unit: "°C", Description: "Motor High Temp Cutoff"},
	{Name: "high_temp_resume", Offset: 0x140, Width: 1, Kind: KindUnsigned, Min: 60, Max: 170, Unit: "°C", Description: "Motor High Temp Resume"},
}

// LookupField returns the table entry for name
func LookupField(name string) (ConfigField, bool) {
	for _, f := range ConfigFields {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// ConfigValue is one decoded parameter
type ConfigValue struct {
	Field  ConfigField
	Text   string // KindASCII, KindHex
	Number int    // numeric kinds
}

// Scaled returns the numeric value in display units
func (v ConfigValue) Scaled() float64 {
	return float64(v.Number) * v.Field.Scale()
}

// Interface returns the value as a string or int for structured output
func (v ConfigValue) Interface() interface{} {
	if v.Field.Numeric() {
		return v.Number
	}
	return v.Text
}

// String renders the value with its unit or option label
func (v ConfigValue) String() string {
	f := v.Field
	switch {
	case !f.Numeric():
		return v.Text
	case f.Kind == KindTenths:
		return strconv.FormatFloat(v.Scaled(), 'f', 1, 64) + " " + f.Unit
	case f.Options != nil:
		if label, ok := f.Options[v.Number]; ok {
			return fmt.Sprintf("%d (%s)", v.Number, label)
		}
		return strconv.Itoa(v.Number)
	case f.Unit != "":
		return strconv.Itoa(v.Number) + " " + f.Unit
	default:
		return strconv.Itoa(v.Number)
	}
}

// decodeField extracts f from raw; false if raw does not cover the field
func decodeField(f ConfigField, raw []byte) (ConfigValue, bool) {
	if f.end() > len(raw) {
		return ConfigValue{}, false
	}
	b := raw[f.Offset:f.end()]
	v := ConfigValue{Field: f}

	switch f.Kind {
	case KindASCII:
		v.Text = strings.TrimRight(string(b), "\x00")
	case KindHex:
		v.Text = hex.EncodeToString(b)
	case KindBit:
		v.Number = int(b[0]>>f.Bit) & 0x01
	default:
		for _, x := range b {
			v.Number = v.Number<<8 | int(x)
		}
	}
	return v, true
}

// encodeField writes v into dst at the field's offset. dst must cover the
// field.
func encodeField(f ConfigField, v ConfigValue, dst []byte) error {
	b := dst[f.Offset:f.end()]

	switch f.Kind {
	case KindASCII:
		if len(v.Text) > f.Width {
			return fmt.Errorf("%w: %s holds %d characters, got %d", ErrValueOverflow, f.Name, f.Width, len(v.Text))
		}
		for i := 0; i < len(v.Text); i++ {
			if v.Text[i] >= 0x80 {
				return fmt.Errorf("%w: %s must be ASCII", ErrValueOverflow, f.Name)
			}
		}
		for i := range b {
			b[i] = 0
		}
		copy(b, v.Text)

	case KindHex:
		decoded, err := hex.DecodeString(v.Text)
		if err != nil || len(decoded) != f.Width {
			return fmt.Errorf("%w: %s needs %d hex bytes", ErrValueOverflow, f.Name, f.Width)
		}
		copy(b, decoded)

	case KindBit:
		if v.Number < 0 || v.Number > 1 {
			return fmt.Errorf("%w: %s is a single bit, got %d", ErrValueOverflow, f.Name, v.Number)
		}
		b[0] = b[0]&^(1<<f.Bit) | byte(v.Number)<<f.Bit

	default:
		if v.Number < 0 || v.Number > f.maxRaw() {
			return fmt.Errorf("%w: %s is %d bytes, got %d", ErrValueOverflow, f.Name, f.Width, v.Number)
		}
		n := v.Number
		for i := len(b) - 1; i >= 0; i-- {
			b[i] = byte(n)
			n >>= 8
		}
	}
	return nil
}

// ConfigBlock is a configuration block read from the controller plus any
// parameter changes made since. Unchanged parameters keep the bytes the
// controller sent.
type ConfigBlock struct {
	base    []byte
	values  map[string]ConfigValue
	changes map[string]ConfigValue
}

// DecodeConfig decodes a READ_CONFIG payload. Parameters whose bytes fall
// outside raw are absent from the block.
func DecodeConfig(raw []byte) *ConfigBlock {
	b := &ConfigBlock{
		base:    append([]byte(nil), raw...),
		values:  make(map[string]ConfigValue),
		changes: make(map[string]ConfigValue),
	}
	for _, f := range ConfigFields {
		if v, ok := decodeField(f, b.base); ok {
			b.values[f.Name] = v
		}
	}
	return b
}

// Raw returns a copy of the bytes the block was decoded from
func (b *ConfigBlock) Raw() []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b.base...)
}

// Len returns the size of the base block
func (b *ConfigBlock) Len() int {
	if b == nil {
		return 0
	}
	return len(b.base)
}

// Get returns the current value of a parameter, including pending changes
func (b *ConfigBlock) Get(name string) (ConfigValue, bool) {
	if b == nil {
		return ConfigValue{}, false
	}
	if v, ok := b.changes[name]; ok {
		return v, true
	}
	v, ok := b.values[name]
	return v, ok
}

// Values returns every present parameter in table order
func (b *ConfigBlock) Values() []ConfigValue {
	var out []ConfigValue
	for _, f := range ConfigFields {
		if v, ok := b.Get(f.Name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Map returns name -> value for structured output
func (b *ConfigBlock) Map() map[string]interface{} {
	m := make(map[string]interface{})
	for _, v := range b.Values() {
		m[v.Field.Name] = v.Interface()
	}
	return m
}

// Changed returns the names of parameters changed since decode, in table
// order
func (b *ConfigBlock) Changed() []string {
	if b == nil {
		return nil
	}
	var names []string
	for _, f := range ConfigFields {
		if _, ok := b.changes[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// SetInt changes a numeric parameter to raw value n
func (b *ConfigBlock) SetInt(name string, n int) error {
	f, err := b.writableField(name)
	if err != nil {
		return err
	}
	if !f.Numeric() {
		return fmt.Errorf("%s is a %s parameter, not numeric", name, f.Kind)
	}
	return b.record(ConfigValue{Field: f, Number: n})
}

// SetScaled changes a numeric parameter from display units, applying the
// inverse of the field's scale (2.5 s -> 25 for tenths fields).
func (b *ConfigBlock) SetScaled(name string, v float64) error {
	f, ok := LookupField(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return b.SetInt(name, int(math.Round(v/f.Scale())))
}

// SetString changes an ASCII or hex parameter
func (b *ConfigBlock) SetString(name, s string) error {
	f, err := b.writableField(name)
	if err != nil {
		return err
	}
	if f.Numeric() {
		return fmt.Errorf("%s is a %s parameter, not text", name, f.Kind)
	}
	return b.record(ConfigValue{Field: f, Text: s})
}

// Set parses text according to the parameter's kind. Numeric parameters take
// a raw integer; tenths parameters also accept seconds with an "s" suffix
// ("2.5s").
func (b *ConfigBlock) Set(name, text string) error {
	f, ok := LookupField(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	if !f.Numeric() {
		return b.SetString(name, text)
	}
	if f.Kind == KindTenths && strings.HasSuffix(text, "s") {
		secs, err := strconv.ParseFloat(strings.TrimSuffix(text, "s"), 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q", name, text)
		}
		return b.SetScaled(name, secs)
	}
	n, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", name, text)
	}
	return b.SetInt(name, int(n))
}

func (b *ConfigBlock) writableField(name string) (ConfigField, error) {
	f, ok := LookupField(name)
	if !ok {
		return ConfigField{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	if f.ReadOnly {
		return ConfigField{}, fmt.Errorf("%w: %s", ErrReadOnlyParameter, name)
	}
	return f, nil
}

func (b *ConfigBlock) record(v ConfigValue) error {
	// Catch values that can never be encoded now rather than at write time
	if err := encodeField(v.Field, v, make([]byte, v.Field.end())); err != nil {
		return err
	}
	if b.changes == nil {
		b.changes = make(map[string]ConfigValue)
	}
	b.changes[v.Field.Name] = v
	return nil
}

// EncodeConfig produces the raw block for WRITE_CONFIG: the base bytes with
// every changed parameter written back at its offset.
//
// Values outside a parameter's documented range are still encoded, since
// the controller has the final say; each one is reported as a RangeWarning.
func EncodeConfig(b *ConfigBlock) ([]byte, []RangeWarning, error) {
	if b == nil || len(b.base) == 0 {
		return nil, nil, ErrIncompleteConfigBase
	}

	out := append([]byte(nil), b.base...)
	var warnings []RangeWarning

	for _, name := range b.Changed() {
		v := b.changes[name]
		f := v.Field
		if f.end() > len(out) {
			return nil, nil, fmt.Errorf("%w: %s needs bytes 0x%02X-0x%02X, block is %d bytes",
				ErrFieldOutsideBlock, f.Name, f.Offset, f.end()-1, len(out))
		}
		if err := encodeField(f, v, out); err != nil {
			return nil, nil, err
		}
		if f.Numeric() && !f.InRange(v.Number) {
			warnings = append(warnings, newRangeWarning(f, v.Number))
		}
	}

	return out, warnings, nil
}
