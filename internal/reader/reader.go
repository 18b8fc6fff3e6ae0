// Package reader provides streaming line-based reading from io.Reader sources.
package reader

import (
	"bufio"
	"fmt"
	"io"
)

// Default configuration values.
const (
	DefaultMaxLineSize = 1024 * 1024 // 1MB max line size
	DefaultBufferSize  = 64 * 1024   // 64KB initial buffer
)

// Line represents a single line read from the input stream.
type Line struct {
	// Text contains the line content (without newline).
	Text string

	// Number is the 1-based line number in the input.
	Number int
}

// StreamReader reads lines from an io.Reader one at a time. The input is
// consumed forward only.
type StreamReader struct {
	scanner    *bufio.Scanner
	lineNumber int
	maxSize    int
}

// Option configures the StreamReader.
type Option func(*StreamReader)

// WithMaxLineSize sets the maximum allowed line size.
// A longer line stops reading with an error.
func WithMaxLineSize(size int) Option {
	return func(r *StreamReader) {
		if size > 0 {
			r.maxSize = size
		}
	}
}

// New creates a StreamReader from an io.Reader.
func New(input io.Reader, opts ...Option) *StreamReader {
	reader := &StreamReader{
		maxSize: DefaultMaxLineSize,
	}

	// Apply options
	for _, opt := range opts {
		opt(reader)
	}

	// Create scanner with custom buffer
	scanner := bufio.NewScanner(input)
	bufSize := DefaultBufferSize
	if reader.maxSize < bufSize {
		bufSize = reader.maxSize
	}
	scanner.Buffer(make([]byte, bufSize), reader.maxSize)

	reader.scanner = scanner
	return reader
}

// Each calls fn for every line, in order, fully handling one line before
// reading the next. It stops at the first error from fn or from the input.
func (r *StreamReader) Each(fn func(Line) error) error {
	for r.scanner.Scan() {
		r.lineNumber++
		if err := fn(Line{Text: r.scanner.Text(), Number: r.lineNumber}); err != nil {
			return err
		}
	}

	// Check for scanner errors (not EOF)
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("read error at line %d: %w", r.lineNumber+1, err)
	}
	return nil
}

// LineNumber returns the number of lines read so far.
func (r *StreamReader) LineNumber() int {
	return r.lineNumber
}
