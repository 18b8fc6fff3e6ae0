// Package emitter handles record serialization.
package emitter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/juliosaraiva/logshape/internal/parser"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON writes one JSON array indented by two spaces.
	FormatJSON Format = "json"
	// FormatNDJSON writes one compact JSON object per line.
	FormatNDJSON Format = "ndjson"
	// FormatSQLite inserts records into a SQLite database file.
	FormatSQLite Format = "sqlite"
)

// Keys of the nested shape.
const (
	KeyLine   = "line"
	KeyType   = "type"
	KeyFile   = "file"
	KeyFields = "fields"
)

// Keys of the flat shape. Fields are merged next to them; a field with
// the same name replaces the value.
const (
	FlatKeyLine = "__line__"
	FlatKeyType = "__type__"
	FlatKeyFile = "__file__"
)

// Options configures the emitter behavior.
type Options struct {
	// Flat merges fields into the top-level record instead of nesting
	// them under "fields".
	Flat bool
}

// Emitter writes a complete batch of records. Records are only handed
// over once the whole input parsed, so a failed run writes nothing.
type Emitter interface {
	Emit(records []parser.Record) error
	Close() error
}

// New creates a stream emitter writing to output.
func New(format Format, output io.Writer, opts Options) (Emitter, error) {
	switch format {
	case FormatJSON, "":
		return newStream(output, opts, false), nil
	case FormatNDJSON:
		return newStream(output, opts, true), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// StreamEmitter writes JSON to an io.Writer.
type StreamEmitter struct {
	writer  *bufio.Writer
	options Options
	lines   bool
}

func newStream(output io.Writer, opts Options, lines bool) *StreamEmitter {
	return &StreamEmitter{
		writer:  bufio.NewWriter(output),
		options: opts,
		lines:   lines,
	}
}

// Emit encodes every record.
func (e *StreamEmitter) Emit(records []parser.Record) error {
	shaped := make([]Object, len(records))
	for i, r := range records {
		shaped[i] = Shape(r, e.options.Flat)
	}

	if e.lines {
		enc := newEncoder(e.writer)
		for _, obj := range shaped {
			if err := enc.Encode(obj); err != nil {
				return err
			}
		}
		return e.writer.Flush()
	}

	enc := newEncoder(e.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(shaped); err != nil {
		return err
	}
	return e.writer.Flush()
}

// Close flushes any remaining data.
func (e *StreamEmitter) Close() error {
	return e.writer.Flush()
}

// Member is one key of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its key order.
type Object []Member

// Set replaces the value under key, or appends it.
func (o *Object) Set(key string, value any) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Member{Key: key, Value: value})
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := newEncoder(&buf)

	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(m.Key); err != nil {
			return nil, err
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(m.Value); err != nil {
			return nil, fmt.Errorf("field %q: %w", m.Key, err)
		}
		trimNewline(&buf)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Shape converts a record into its output object.
func Shape(r parser.Record, flat bool) Object {
	if flat {
		obj := make(Object, 0, len(r.Fields)+3)
		obj.Set(FlatKeyLine, r.Line)
		obj.Set(FlatKeyType, r.Type)
		if r.Source != "" {
			obj.Set(FlatKeyFile, r.Source)
		}
		for _, f := range r.Fields {
			obj.Set(f.Name, f.Value)
		}
		return obj
	}

	fields := make(Object, 0, len(r.Fields))
	for _, f := range r.Fields {
		fields.Set(f.Name, f.Value)
	}

	obj := Object{{Key: KeyLine, Value: r.Line}, {Key: KeyType, Value: r.Type}}
	if r.Source != "" {
		obj = append(obj, Member{Key: KeyFile, Value: r.Source})
	}
	return append(obj, Member{Key: KeyFields, Value: fields})
}

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	// Don't escape HTML characters (cleaner output)
	enc.SetEscapeHTML(false)
	return enc
}

func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}
