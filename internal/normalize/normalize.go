// Package normalize compiles and evaluates the user-authored transform rules
// attached to schema formats.
//
// A rule is an expression evaluated with two variables in scope:
//
//	value  the parsed value (a number; durations are given in seconds)
//	args   the external argument mapping
//
// Example: value - float(args.offset)
package normalize

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrNormalization is returned (wrapped in *Error) when a rule fails to
// compile or to evaluate.
var ErrNormalization = errors.New("normalization failed")

// Error describes a rule failure.
type Error struct {
	Rule string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: rule %q: %v", ErrNormalization, e.Rule, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrNormalization, e.Err}
}

// Rule is a compiled transform rule. It is safe for concurrent use.
type Rule struct {
	source  string
	program *vm.Program
}

// compileEnv fixes the static types of the rule variables.
var compileEnv = map[string]any{
	"value": float64(0),
	"args":  map[string]any{},
}

// Compile parses and type-checks a rule once, at schema load time.
func Compile(source string) (*Rule, error) {
	if source == "" {
		return nil, &Error{Rule: source, Err: errors.New("empty rule")}
	}

	program, err := expr.Compile(source, expr.Env(compileEnv))
	if err != nil {
		return nil, &Error{Rule: source, Err: err}
	}

	return &Rule{source: source, program: program}, nil
}

// Source returns the rule text as written in the schema.
func (r *Rule) Source() string {
	return r.source
}

// Eval runs the rule against value with args bound. The rule is evaluated on
// every call; results are never cached.
func (r *Rule) Eval(value float64, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	out, err := expr.Run(r.program, map[string]any{
		"value": value,
		"args":  args,
	})
	if err != nil {
		return nil, &Error{Rule: r.source, Err: err}
	}

	return out, nil
}

// Apply evaluates rule against value, returning value unchanged when rule is
// nil.
func Apply(value float64, rule *Rule, args map[string]any) (any, error) {
	if rule == nil {
		return value, nil
	}
	return rule.Eval(value, args)
}
