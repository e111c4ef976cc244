// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Transport is the byte link to the controller. A go.bug.st/serial Port
// satisfies it directly. Read must return (0, nil) once the read timeout
// expires with nothing received.
type Transport interface {
	io.Reader
	io.Writer
	SetReadTimeout(t time.Duration) error
}

// inputResetter is implemented by transports that can drop stale input
type inputResetter interface {
	ResetInputBuffer() error
}

// ExchangeResult is the outcome of one request/response exchange
type ExchangeResult struct {
	Command  Command
	Payload  []byte
	Attempts int
	Duration time.Duration
	Err      error
}

// Success reports whether the exchange returned a payload
func (r ExchangeResult) Success() bool {
	return r.Err == nil
}

// Observer is called after every exchange, successful or not
type Observer func(ExchangeResult)

// Driver runs exchanges over a Transport: one request out, one validated
// response back, retried on line faults. A Driver is not safe for concurrent
// use; Controller serializes access.
type Driver struct {
	transport Transport
	timeout   time.Duration
	retries   int
	logger    *zap.Logger
	stats     *Statistics
	observer  Observer
	readBuf   []byte
}

// Option configures a Driver
type Option func(*Driver)

// WithTimeout sets the per-attempt response deadline
func WithTimeout(t time.Duration) Option {
	return func(d *Driver) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithRetries sets how many times a failed attempt is repeated
func WithRetries(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.retries = n
		}
	}
}

// WithLogger routes frame traces (debug) and retries (warn) to logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStatistics counts attempts and exchanges into stats
func WithStatistics(stats *Statistics) Option {
	return func(d *Driver) {
		d.stats = stats
	}
}

// WithObserver registers fn to receive every ExchangeResult
func WithObserver(fn Observer) Option {
	return func(d *Driver) {
		d.observer = fn
	}
}

// NewDriver creates a driver with a 300 ms timeout and 2 retries unless
// overridden.
func NewDriver(t Transport, opts ...Option) *Driver {
	d := &Driver{
		transport: t,
		timeout:   DefaultTimeout,
		retries:   DefaultRetries,
		logger:    zap.NewNop(),
		readBuf:   make([]byte, MaxFrameSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Timeout returns the per-attempt deadline
func (d *Driver) Timeout() time.Duration {
	return d.timeout
}

// Retries returns the retry count
func (d *Driver) Retries() int {
	return d.retries
}

// Statistics returns the attached statistics, or nil
func (d *Driver) Statistics() *Statistics {
	return d.stats
}

// Execute sends cmd with data and waits for the matching response. Encode
// errors fail at once; checksum, length, timeout, echo and transport
// failures are retried up to Retries more times and the last error is
// returned.
func (d *Driver) Execute(cmd Command, data []byte) ExchangeResult {
	start := time.Now()
	result := ExchangeResult{Command: cmd}

	request, err := EncodeFrame(cmd, data)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		d.finish(result)
		return result
	}

	for attempt := 1; attempt <= d.retries+1; attempt++ {
		result.Attempts = attempt

		payload, err := d.attempt(cmd, request)
		if d.stats != nil {
			d.stats.RecordAttempt(err)
		}
		if err == nil {
			result.Payload = payload
			result.Err = nil
			break
		}

		result.Err = err
		if attempt <= d.retries {
			d.logger.Warn("exchange attempt failed, retrying",
				zap.Stringer("cmd", cmd),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", d.retries+1),
				zap.Error(err))
		}
	}

	result.Duration = time.Since(start)
	if result.Err != nil {
		d.logger.Debug("exchange failed",
			zap.Stringer("cmd", cmd),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err))
	}
	d.finish(result)
	return result
}

// Do is Execute returning the payload and error directly
func (d *Driver) Do(cmd Command, data []byte) ([]byte, error) {
	r := d.Execute(cmd, data)
	return r.Payload, r.Err
}

func (d *Driver) finish(r ExchangeResult) {
	if d.stats != nil {
		d.stats.RecordExchange(r)
	}
	if d.observer != nil {
		d.observer(r)
	}
}

// attempt performs a single write and response read
func (d *Driver) attempt(cmd Command, request []byte) ([]byte, error) {
	if r, ok := d.transport.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return nil, fmt.Errorf("reset input buffer: %w", err)
		}
	}

	d.logger.Debug("TX", zap.Stringer("cmd", cmd), zap.String("frame", hex.EncodeToString(request)))
	if _, err := d.transport.Write(request); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	frame, err := d.readFrame()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	d.logger.Debug("RX", zap.Stringer("cmd", frame.Command()), zap.String("frame", hex.EncodeToString(frame.Bytes())))
	if frame.Command() != cmd {
		return nil, fmt.Errorf("%w: sent %s, got %s", ErrUnexpectedCommand, cmd, frame.Command())
	}
	return frame.Data(), nil
}

// readFrame feeds the transport through a fresh decoder until a frame
// completes or the attempt deadline passes
func (d *Driver) readFrame() (*Frame, error) {
	dec := NewDecoder()
	deadline := time.Now().Add(d.timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if dec.Pending() > 0 {
				return nil, fmt.Errorf("%w: %d bytes of an incomplete frame after %s", ErrTimeout, dec.Pending(), d.timeout)
			}
			return nil, fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
		}
		if err := d.transport.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		n, err := d.transport.Read(d.readBuf)
		for _, b := range d.readBuf[:n] {
			frame, ferr := dec.DecodeByte(b)
			if ferr != nil {
				return nil, ferr
			}
			if frame != nil {
				return frame, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read: connection closed: %w", err)
			}
			return nil, fmt.Errorf("read: %w", err)
		}
	}
}
