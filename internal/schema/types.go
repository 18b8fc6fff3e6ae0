// Package schema loads the external parsing schema and compiles it into a
// validated descriptor tree: argument specs, field types and line types.
package schema

import (
	"regexp"

	"github.com/juliosaraiva/logshape/internal/normalize"
)

// Category is the value family a field type produces.
type Category int

const (
	CategoryTimedelta Category = iota + 1
	CategoryNumber
)

func (c Category) String() string {
	switch c {
	case CategoryTimedelta:
		return "timedelta"
	case CategoryNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Kind selects how a format converts raw text.
type Kind int

const (
	KindFloat Kind = iota + 1
	KindDatetime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindDatetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ArgumentSpec declares one external argument. An argument without a
// default is required.
type ArgumentSpec struct {
	Name       string
	Default    any
	HasDefault bool
}

// Format is one candidate parser within a field type.
type Format struct {
	// Name is the optional subtype tag.
	Name string
	Kind Kind
	// Pattern is the strptime-style layout for KindDatetime.
	Pattern string
	// Normalize is nil when the format has no transform rule.
	Normalize *normalize.Rule
}

// FieldType is a named coercion rule: a category plus formats in try-order.
type FieldType struct {
	Name     string
	Category Category
	Formats  []Format
}

// Candidates returns the formats to try for subtype, in declared order.
// An empty subtype selects every format. A subtype no format carries
// yields no candidates.
func (t *FieldType) Candidates(subtype string) []Format {
	if subtype == "" {
		return t.Formats
	}

	var out []Format
	for _, f := range t.Formats {
		if f.Name == subtype {
			out = append(out, f)
		}
	}
	return out
}

// HasSubtype reports whether any format is tagged with name.
func (t *FieldType) HasSubtype(name string) bool {
	for _, f := range t.Formats {
		if f.Name == name {
			return true
		}
	}
	return false
}

// RefKind tags how a field reference resolves.
type RefKind int

const (
	// RefRaw keeps the captured text unchanged.
	RefRaw RefKind = iota
	// RefNumber converts directly to a float, bypassing formats.
	RefNumber
	// RefType resolves through every format of Type.
	RefType
	// RefSubtype resolves through the formats of Type named Subtype.
	RefSubtype
)

// FieldRef is a field-type reference resolved at load time.
type FieldRef struct {
	Kind    RefKind
	Text    string
	Type    *FieldType
	Subtype string
}

// TypeName returns the referenced field type name, if any.
func (r FieldRef) TypeName() string {
	if r.Type == nil {
		return ""
	}
	return r.Type.Name
}

// LineType is one compiled line pattern with its field bindings.
type LineType struct {
	ID string
	// Pattern is the regex as written in the schema.
	Pattern string
	// Regex is anchored at line start.
	Regex *regexp.Regexp
	// Fields maps capture-group names to references. Groups without an
	// entry are passed through as raw text.
	Fields map[string]FieldRef
}

// Schema is the compiled, read-only schema.
type Schema struct {
	Args      []ArgumentSpec
	Types     map[string]*FieldType
	LineTypes []*LineType
}

// LookupType returns the field type registered under name.
func (s *Schema) LookupType(name string) (*FieldType, bool) {
	t, ok := s.Types[name]
	return t, ok
}
