// Package args builds the external argument mapping made available to
// normalization rules and checks it against the schema's declarations.
package args

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/juliosaraiva/logshape/internal/schema"
)

// ErrMissingArgument is returned (wrapped in *MissingError) when a required
// argument was not supplied.
var ErrMissingArgument = errors.New("missing required argument")

// MissingError names one required argument that was not supplied.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingArgument, e.Name)
}

func (e *MissingError) Unwrap() error {
	return ErrMissingArgument
}

// IsPair reports whether s looks like a key=value argument.
func IsPair(s string) bool {
	return strings.Contains(s, "=")
}

// ParsePairs converts key=value strings into a mapping. Values are split on
// the first '=' and kept as strings; later pairs override earlier ones.
func ParsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

// LoadEnvFile reads arguments from a dotenv-style file.
func LoadEnvFile(path string) (map[string]any, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read argument file %s: %w", path, err)
	}

	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out, nil
}

// Merge returns a new mapping holding base overlaid with override.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Complete checks supplied against specs and returns a new mapping with
// defaults filled in. Every missing required argument is reported; nothing
// is returned unless all of them are present. Supplied arguments the schema
// does not declare are kept.
func Complete(specs []schema.ArgumentSpec, supplied map[string]any) (map[string]any, error) {
	out := Merge(supplied, nil)

	var errs []error
	for _, spec := range specs {
		if _, ok := out[spec.Name]; ok {
			continue
		}
		if spec.HasDefault {
			out[spec.Name] = spec.Default
			continue
		}
		errs = append(errs, &MissingError{Name: spec.Name})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
