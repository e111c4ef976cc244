// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package kelly

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Statistics tracks exchange outcomes and error rates. It is safe for use
// from several goroutines.
type Statistics struct {
	mu sync.Mutex
	StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Exchanges
	Exchanges uint64
	Attempts  uint64
	Retries   uint64
	Successes uint64
	Failures  uint64

	// Per-attempt failures
	ChecksumErrors  uint64
	Timeouts        uint64
	MalformedFrames uint64
	EchoMismatches  uint64
	TransportErrors uint64

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // failed attempts/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	s := &Statistics{}
	s.StartTime = now
	s.LastUpdateTime = now
	return s
}

// RecordAttempt counts one attempt and classifies its error, if any
func (s *Statistics) RecordAttempt(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Attempts++
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrChecksum):
		s.ChecksumErrors++
	case errors.Is(err, ErrTimeout):
		s.Timeouts++
	case errors.Is(err, ErrUnexpectedCommand):
		s.EchoMismatches++
	case errors.Is(err, ErrFrameTooShort), errors.Is(err, ErrUnknownLength):
		s.MalformedFrames++
	default:
		s.TransportErrors++
	}
}

// RecordExchange counts a finished exchange
func (s *Statistics) RecordExchange(r ExchangeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Exchanges++
	if r.Attempts > 1 {
		s.Retries += uint64(r.Attempts - 1)
	}
	if r.Success() {
		s.Successes++
	} else {
		s.Failures++
	}
	s.LastUpdateTime = time.Now()
}

// Snapshot returns a copy of the counters with rates filled in
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.StatisticsSnapshot
	snap.calculateRates(time.Since(snap.StartTime))
	return snap
}

func (s *StatisticsSnapshot) calculateRates(elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs > 0 {
		s.ExchangeRate = float64(s.Exchanges) / secs
		s.ErrorRate = float64(s.FailedAttempts()) / secs
	}
}

// FailedAttempts is the sum of every per-attempt failure counter
func (s StatisticsSnapshot) FailedAttempts() uint64 {
	return s.ChecksumErrors + s.Timeouts + s.MalformedFrames + s.EchoMismatches + s.TransportErrors
}

// SuccessPercent is the share of exchanges that returned a payload
func (s StatisticsSnapshot) SuccessPercent() float64 {
	if s.Exchanges == 0 {
		return 0
	}
	return float64(s.Successes) * 100.0 / float64(s.Exchanges)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (s StatisticsSnapshot) String() string {
	var b strings.Builder
	elapsed := s.LastUpdateTime.Sub(s.StartTime)

	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Exchanges:       %8d\n", s.Exchanges)
	fmt.Fprintf(&b, "Successful:      %8d (%.1f%%)\n", s.Successes, s.SuccessPercent())
	if s.Failures > 0 {
		fmt.Fprintf(&b, "Failed:          %8d\n", s.Failures)
	}
	fmt.Fprintf(&b, "Attempts:        %8d (%d retries)\n", s.Attempts, s.Retries)

	if s.FailedAttempts() > 0 {
		if s.ChecksumErrors > 0 {
			fmt.Fprintf(&b, "  Checksum Errors:  %5d\n", s.ChecksumErrors)
		}
		if s.Timeouts > 0 {
			fmt.Fprintf(&b, "  Timeouts:         %5d\n", s.Timeouts)
		}
		if s.MalformedFrames > 0 {
			fmt.Fprintf(&b, "  Malformed Frames: %5d\n", s.MalformedFrames)
		}
		if s.EchoMismatches > 0 {
			fmt.Fprintf(&b, "  Echo Mismatches:  %5d\n", s.EchoMismatches)
		}
		if s.TransportErrors > 0 {
			fmt.Fprintf(&b, "  Transport Errors: %5d\n", s.TransportErrors)
		}
	}

	fmt.Fprintf(&b, "Exchange Rate:   %8.1f /sec\n", s.ExchangeRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f /sec\n", s.ErrorRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StatisticsSnapshot = StatisticsSnapshot{StartTime: now, LastUpdateTime: now}
}
