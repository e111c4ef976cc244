// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package recorder stores monitor sessions as a stream of CBOR records and
// plays them back.
//
// A recording is a Header followed by any number of Records, each a
// self-delimiting CBOR item, so a file cut short by a crash is still readable
// up to the last complete record.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

// FormatVersion is written in every header
const FormatVersion = 1

// Kind tags a record
type Kind uint8

// Record kinds
const (
	KindSnapshot Kind = 1
	KindExchange Kind = 2
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindExchange:
		return "exchange"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Header opens every recording
type Header struct {
	Version int       `cbor:"1,keyasint"`
	Started time.Time `cbor:"2,keyasint"`
	Source  string    `cbor:"3,keyasint,omitempty"`
}

// Exchange is a recorded request/response outcome
type Exchange struct {
	Command  kelly.Command `cbor:"1,keyasint"`
	Payload  []byte        `cbor:"2,keyasint,omitempty"`
	Attempts int           `cbor:"3,keyasint"`
	Duration time.Duration `cbor:"4,keyasint"`
	Error    string        `cbor:"5,keyasint,omitempty"`
}

// Record is one entry after the header
type Record struct {
	Kind     Kind                   `cbor:"1,keyasint"`
	Time     time.Time              `cbor:"2,keyasint"`
	Snapshot *kelly.MonitorSnapshot `cbor:"3,keyasint,omitempty"`
	Exchange *Exchange              `cbor:"4,keyasint,omitempty"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a recording
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
}

// NewWriter writes a header to w and returns a Writer
func NewWriter(w io.Writer, source string) (*Writer, error) {
	rw := &Writer{enc: encMode.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	h := Header{Version: FormatVersion, Started: time.Now(), Source: source}
	if err := rw.enc.Encode(h); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return rw, nil
}

// Create opens path for writing (truncating it) and writes a header
func Create(path, source string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, source)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteSnapshot records a monitor snapshot
func (w *Writer) WriteSnapshot(s kelly.MonitorSnapshot) error {
	return w.write(Record{Kind: KindSnapshot, Time: s.Timestamp, Snapshot: &s})
}

// WriteExchange records an exchange result
func (w *Writer) WriteExchange(r kelly.ExchangeResult) error {
	ex := &Exchange{
		Command:  r.Command,
		Payload:  r.Payload,
		Attempts: r.Attempts,
		Duration: r.Duration,
	}
	if r.Err != nil {
		ex.Error = r.Err.Error()
	}
	return w.write(Record{Kind: KindExchange, Time: time.Now(), Exchange: ex})
}

func (w *Writer) write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write %s record: %w", rec.Kind, err)
	}
	return nil
}

// Close closes the underlying writer if it is an io.Closer
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Reader plays back a recording
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the header from r
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{dec: cbor.NewDecoder(r)}
	if err := rd.dec.Decode(&rd.header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if rd.header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported recording version %d", rd.header.Version)
	}
	return rd, nil
}

// Header returns the recording header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF after the last one. A record cut
// short at the end of the stream is reported as io.ErrUnexpectedEOF.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	return rec, nil
}

// ReadAll returns every remaining record. Records read before a truncated
// tail are returned together with the error.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
