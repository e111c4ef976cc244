// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import "errors"

// Framing and integrity errors. The exchange driver retries these.
var (
	ErrInvalidDataLength = errors.New("data exceeds 16 bytes")
	ErrFrameTooShort     = errors.New("frame too short")
	ErrUnknownLength     = errors.New("frame length does not match length byte")
	ErrChecksum          = errors.New("checksum mismatch")
	ErrTimeout           = errors.New("timed out waiting for response")
	ErrUnexpectedCommand = errors.New("response does not echo request command")
)

// Payload errors. These point at a layout problem, not a line fault, and are
// never retried.
var (
	ErrUnexpectedLength = errors.New("unexpected payload length")
)

// Configuration errors
var (
	ErrIncompleteConfigBase = errors.New("config encode needs a block read from the controller")
	ErrUnknownParameter     = errors.New("unknown config parameter")
	ErrReadOnlyParameter    = errors.New("config parameter is read-only")
	ErrValueOverflow        = errors.New("value does not fit parameter width")
	ErrFieldOutsideBlock    = errors.New("config parameter lies outside the block")
	ErrWriteNotEnabled      = errors.New("config write is disabled")
)
