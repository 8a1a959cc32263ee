// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire holds the binary primitives shared by every transmissible type.
//
// Layout is big-endian with IEEE-754 binary32 floats, the same layout a Java
// DataOutputStream produces, so JVM-side observers can read frames unchanged.
// Writer and Reader keep the first error they hit; encoders can chain calls and
// check Err once at the end.
package wire

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// EventType is the one-byte tag that prefixes every telemetry frame.
type EventType byte

// Tag values are part of the wire format and must not be renumbered.
const (
	EventLog     EventType = 0
	EventMCLData EventType = 1
	EventPath    EventType = 2
)

func (t EventType) String() string {
	switch t {
	case EventLog:
		return "LOG"
	case EventMCLData:
		return "MCL_DATA"
	case EventPath:
		return "PATH"
	default:
		return "UNKNOWN"
	}
}

// MaxStringLen is the largest byte length a length-prefixed string can carry.
const MaxStringLen = math.MaxUint16

// Encoder is implemented by everything that can be sent as a frame payload.
type Encoder interface {
	Encode(w *Writer) error
}

// EncoderFunc adapts a plain function to Encoder.
type EncoderFunc func(w *Writer) error

// Encode calls f(w).
func (f EncoderFunc) Encode(w *Writer) error {
	return f(w)
}

// Writer writes fixed-size fields to an underlying io.Writer.
type Writer struct {
	w   io.Writer
	buf [4]byte
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error seen by the writer.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = errors.Wrap(err, "wire write")
	}
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf[0] = b
	w.write(w.buf[:1])
}

// Uint16 writes v big-endian.
func (w *Writer) Uint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	w.write(w.buf[:2])
}

// Float32 writes v as a binary32 float. Values outside float32 range saturate
// to ±Inf, the same as a Java float cast.
func (w *Writer) Float32(v float64) {
	binary.BigEndian.PutUint32(w.buf[:4], math.Float32bits(float32(v)))
	w.write(w.buf[:4])
}

// UTF writes s as an unsigned 16-bit byte length followed by its UTF-8
// bytes. Strings longer than MaxStringLen are cut on a rune boundary.
func (w *Writer) UTF(s string) {
	s = truncateUTF8(s, MaxStringLen)
	w.Uint16(uint16(len(s)))
	w.write([]byte(s))
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Reader is the read side of Writer.
type Reader struct {
	r   io.Reader
	buf [4]byte
	err error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error seen by the reader. A clean end of stream before
// the first byte of a field is reported as io.EOF.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) read(b []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			r.err = io.EOF
		} else {
			r.err = errors.Wrap(err, "wire read")
		}
		return false
	}
	return true
}

// Byte reads a single byte.
func (r *Reader) Byte() byte {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() uint16 {
	if !r.read(r.buf[:2]) {
		return 0
	}
	return binary.BigEndian.Uint16(r.buf[:2])
}

// Float32 reads a binary32 float and widens it.
func (r *Reader) Float32() float64 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return float64(math.Float32frombits(binary.BigEndian.Uint32(r.buf[:4])))
}

// UTF reads a length-prefixed UTF-8 string.
func (r *Reader) UTF() string {
	n := r.Uint16()
	if r.err != nil {
		return ""
	}
	b := make([]byte, n)
	if !r.read(b) {
		return ""
	}
	return string(b)
}
