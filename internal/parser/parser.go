// Package parser turns log lines into typed records: it matches lines
// against the schema's line types, resolves every captured field through
// its field type, and assembles the results.
package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned while resolving fields.
var (
	// ErrNoFormatMatched means every candidate format of a field type
	// rejected the captured text.
	ErrNoFormatMatched = errors.New("no format matched")

	// ErrNotANumber means a number-tagged field was not numeric.
	ErrNotANumber = errors.New("not a number")
)

// FieldError carries the context of a failed field. Err is one of the
// sentinel errors above or a *normalize.Error.
type FieldError struct {
	Line     int
	LineType string
	Field    string
	Raw      string
	TypeName string
	Subtype  string
	Err      error
}

func (e *FieldError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.LineType != "" {
		fmt.Fprintf(&b, "%s.%s: ", e.LineType, e.Field)
	}
	fmt.Fprintf(&b, "value %q", e.Raw)
	if e.TypeName != "" {
		b.WriteString(" as " + e.TypeName)
		if e.Subtype != "" {
			b.WriteString("::" + e.Subtype)
		}
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field is one named value of a record, in capture-group order.
type Field struct {
	Name  string
	Value any
}

// Record is the result of one line matching one line type.
type Record struct {
	// Line is the 1-based line number in its input.
	Line int
	// Type is the matching line type ID.
	Type string
	// Source is the input path, when requested.
	Source string
	Fields []Field
}
