package parser

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/juliosaraiva/logshape/internal/logging"
	"github.com/juliosaraiva/logshape/internal/reader"
	"github.com/juliosaraiva/logshape/internal/schema"
)

// Assembler builds records from a stream of lines. Collected keep-going
// failures are its only mutable state; use one Assembler per input stream.
type Assembler struct {
	matcher  *Matcher
	resolver *Resolver

	source    string
	keepGoing bool

	errs []error
}

// Option configures the Assembler.
type Option func(*Assembler)

// WithSource stamps every record with the input path.
func WithSource(path string) Option {
	return func(a *Assembler) {
		a.source = path
	}
}

// WithKeepGoing records field failures and skips the failing match instead
// of stopping at the first one. Collected failures are returned by Errors.
func WithKeepGoing() Option {
	return func(a *Assembler) {
		a.keepGoing = true
	}
}

// NewAssembler creates an assembler for the schema's line types.
func NewAssembler(s *schema.Schema, r *Resolver, opts ...Option) *Assembler {
	a := &Assembler{
		matcher:  NewMatcher(s),
		resolver: r,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Feed processes one line and returns one record per matching line type,
// in declaration order. Records carry the line's number.
func (a *Assembler) Feed(line reader.Line) ([]Record, error) {
	var out []Record
	for _, m := range a.matcher.Match(line.Text) {
		rec, err := a.build(line.Number, m)
		if err != nil {
			if !a.keepGoing {
				return nil, err
			}
			a.errs = append(a.errs, err)
			logging.WithComponent("assembler").WithFields(logrus.Fields{
				"line":      line.Number,
				"line_type": m.LineType.ID,
			}).Warn(err.Error())
			continue
		}
		out = append(out, rec)
	}

	return out, nil
}

// ParseAll feeds every line of lines and returns the records in input
// order. Nothing is returned on a fatal error.
func (a *Assembler) ParseAll(lines *reader.StreamReader) ([]Record, error) {
	records := []Record{}

	err := lines.Each(func(l reader.Line) error {
		recs, err := a.Feed(l)
		if err != nil {
			return err
		}
		records = append(records, recs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithComponent("assembler").WithFields(logrus.Fields{
		"source":  a.source,
		"lines":   lines.LineNumber(),
		"records": len(records),
		"errors":  len(a.errs),
	}).Debug("input parsed")

	return records, nil
}

// Errors returns the failures collected in keep-going mode.
func (a *Assembler) Errors() []error {
	return a.errs
}

func (a *Assembler) build(lineNumber int, m Match) (Record, error) {
	rec := Record{
		Line:   lineNumber,
		Type:   m.LineType.ID,
		Source: a.source,
		Fields: make([]Field, 0, len(m.Captures)),
	}

	for _, c := range m.Captures {
		f := Field{Name: c.Name}

		switch ref, typed := m.LineType.Fields[c.Name]; {
		case !c.Matched:
			// Absent groups are not coerced.
		case !typed:
			f.Value = c.Text
		default:
			v, err := a.resolver.Resolve(c.Text, ref)
			if err != nil {
				return Record{}, annotate(err, lineNumber, m.LineType.ID, c.Name)
			}
			f.Value = v
		}

		rec.Fields = append(rec.Fields, f)
	}

	return rec, nil
}

func annotate(err error, lineNumber int, lineType, field string) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		fe.Line = lineNumber
		fe.LineType = lineType
		fe.Field = field
		return fe
	}
	return &FieldError{Line: lineNumber, LineType: lineType, Field: field, Err: err}
}
