package parser

import (
	"github.com/juliosaraiva/logshape/internal/normalize"
	"github.com/juliosaraiva/logshape/internal/schema"
)

// Resolver converts captured text into typed values. It only reads its
// state and is safe for concurrent use.
type Resolver struct {
	args          map[string]any
	strictNumbers bool
}

// ResolverOption configures the Resolver.
type ResolverOption func(*Resolver)

// WithStrictNumbers makes number-category types fail with
// ErrNoFormatMatched when no format applies, instead of yielding an absent
// value.
func WithStrictNumbers() ResolverOption {
	return func(r *Resolver) {
		r.strictNumbers = true
	}
}

// NewResolver creates a resolver. args is the completed external argument
// mapping handed to normalization rules; it must not change afterwards.
func NewResolver(args map[string]any, opts ...ResolverOption) *Resolver {
	r := &Resolver{args: args}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve converts raw according to ref. Failures are *FieldError.
func (r *Resolver) Resolve(raw string, ref schema.FieldRef) (any, error) {
	switch ref.Kind {
	case schema.RefType, schema.RefSubtype:
		return r.resolveType(raw, ref)

	case schema.RefNumber:
		f, ok := parseNumber(raw)
		if !ok {
			return nil, &FieldError{Raw: raw, TypeName: ref.Text, Err: ErrNotANumber}
		}
		return f, nil

	default:
		return raw, nil
	}
}

func (r *Resolver) resolveType(raw string, ref schema.FieldRef) (any, error) {
	candidates := ref.Type.Candidates(ref.Subtype)

	for _, f := range candidates {
		v, ok := tryFormat(raw, ref.Type.Category, f)
		if !ok {
			continue
		}

		out, err := r.normalize(v, ref.Type.Category, f)
		if err != nil {
			return nil, r.fail(raw, ref, err)
		}
		return out, nil
	}

	if ref.Type.Category == schema.CategoryNumber && !r.strictNumbers {
		return nil, nil
	}
	return nil, r.fail(raw, ref, ErrNoFormatMatched)
}

// tryFormat attempts one candidate. A false result only means this
// candidate does not apply.
func tryFormat(raw string, cat schema.Category, f schema.Format) (any, bool) {
	if cat == schema.CategoryNumber {
		return parseNumber(raw)
	}

	switch f.Kind {
	case schema.KindFloat:
		return parseSeconds(raw)
	case schema.KindDatetime:
		return parseDatetime(raw, f.Pattern)
	default:
		return nil, false
	}
}

// normalize applies the format's rule, if any. Durations are presented to
// the rule as seconds and a numeric result is read back as seconds.
func (r *Resolver) normalize(v any, cat schema.Category, f schema.Format) (any, error) {
	if f.Normalize == nil {
		return v, nil
	}

	var in float64
	switch x := v.(type) {
	case Duration:
		in = x.Seconds()
	case float64:
		in = x
	}

	out, err := normalize.Apply(in, f.Normalize, r.args)
	if err != nil {
		return nil, err
	}

	if cat == schema.CategoryTimedelta {
		d, err := toDuration(out)
		if err != nil {
			return nil, &normalize.Error{Rule: f.Normalize.Source(), Err: err}
		}
		return d, nil
	}

	n, err := toFloat(out)
	if err != nil {
		return nil, &normalize.Error{Rule: f.Normalize.Source(), Err: err}
	}
	return n, nil
}

func (r *Resolver) fail(raw string, ref schema.FieldRef, err error) error {
	return &FieldError{
		Raw:      raw,
		TypeName: ref.TypeName(),
		Subtype:  ref.Subtype,
		Err:      err,
	}
}
