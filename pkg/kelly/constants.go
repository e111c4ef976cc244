// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package kelly implements the host side of the Kelly motor controller serial
// protocol.
//
// Every exchange is a single request frame answered by a single response
// frame of the form [CMD][LEN][DATA...][CHECKSUM], where the checksum is the
// low byte of the sum of all preceding bytes. This package provides frame
// encoding and validation, a byte-level frame decoder, per-command payload
// decoders, the configuration block codec and a retrying exchange driver.
package kelly

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Serial link parameters. The controller does not negotiate these.
const (
	BaudRate = 19200
	DataBits = 8
)

// Frame size limits
const (
	MaxDataLength = 16
	FrameOverhead = 3 // command + length + checksum
	MaxFrameSize  = MaxDataLength + FrameOverhead
)

// Exchange defaults
const (
	DefaultTimeout = 300 * time.Millisecond
	DefaultRetries = 2
)

// ConfigWriteLength is the payload size WRITE_CONFIG expects.
const ConfigWriteLength = 13

// Command identifies a request and the response that echoes it.
type Command uint8

// Info commands
const (
	CmdGetVersion  Command = 0x11
	CmdGetPhaseIAD Command = 0x35
)

// Monitor commands (real-time data)
const (
	CmdMonitorOne   Command = 0x3A
	CmdMonitorTwo   Command = 0x3B
	CmdMonitorThree Command = 0x3C
)

// Motor identification commands
const (
	CmdQuitIdentify        Command = 0x42
	CmdEntryIdentify       Command = 0x43
	CmdCheckIdentifyStatus Command = 0x44
)

// Configuration commands
const (
	CmdReadConfig  Command = 0x4B
	CmdWriteConfig Command = 0x4C
)

// Commands lists every supported command in ascending order.
var Commands = []Command{
	CmdGetVersion,
	CmdGetPhaseIAD,
	CmdMonitorOne,
	CmdMonitorTwo,
	CmdMonitorThree,
	CmdQuitIdentify,
	CmdEntryIdentify,
	CmdCheckIdentifyStatus,
	CmdReadConfig,
	CmdWriteConfig,
}

// String returns the protocol name of the command
func (c Command) String() string {
	switch c {
	case CmdGetVersion:
		return "GET_VERSION"
	case CmdGetPhaseIAD:
		return "GET_PHASE_I_AD"
	case CmdMonitorOne:
		return "MONITOR_ONE"
	case CmdMonitorTwo:
		return "MONITOR_TWO"
	case CmdMonitorThree:
		return "MONITOR_THREE"
	case CmdQuitIdentify:
		return "QUIT_IDENTIFY"
	case CmdEntryIdentify:
		return "ENTRY_IDENTIFY"
	case CmdCheckIdentifyStatus:
		return "CHECK_IDENTIFY_STATUS"
	case CmdReadConfig:
		return "READ_CONFIG"
	case CmdWriteConfig:
		return "WRITE_CONFIG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
	}
}

// Known reports whether c is one of the supported commands
func (c Command) Known() bool {
	for _, k := range Commands {
		if k == c {
			return true
		}
	}
	return false
}

// ParseCommand resolves a protocol name ("MONITOR_ONE", case-insensitive) or
// a numeric literal ("0x3A", "58") to a Command.
func ParseCommand(s string) (Command, error) {
	for _, c := range Commands {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	c := Command(v)
	if !c.Known() {
		return 0, fmt.Errorf("unsupported command 0x%02X", v)
	}
	return c, nil
}

// IdentifyStatus is the motor identification state reported by
// CHECK_IDENTIFY_STATUS.
type IdentifyStatus uint8

// Identification status values
const (
	IdentifyActive   IdentifyStatus = 0xAA
	IdentifyInactive IdentifyStatus = 0x55
)

// String returns a readable identification state
func (s IdentifyStatus) String() string {
	switch s {
	case IdentifyActive:
		return "ACTIVE"
	case IdentifyInactive:
		return "INACTIVE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(s))
	}
}

// Active reports whether motor identification is running
func (s IdentifyStatus) Active() bool {
	return s == IdentifyActive
}
