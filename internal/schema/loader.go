package schema

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/juliosaraiva/logshape/internal/logging"
	"github.com/juliosaraiva/logshape/internal/normalize"
)

// DefaultPath is the schema file used when none is given.
const DefaultPath = "config.yml"

// NumberTag is the field reference that converts straight to a float.
const NumberTag = "number"

// subtypeSep separates a type name from a subtype in field references.
const subtypeSep = "::"

// ErrInvalidSchema is returned (wrapped in *Error) for any schema defect.
var ErrInvalidSchema = errors.New("invalid schema")

// Error locates a schema defect.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s: %s", ErrInvalidSchema, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidSchema}
	}
	return []error{ErrInvalidSchema, e.Err}
}

func invalid(path, reason string, err error) error {
	return &Error{Path: path, Reason: reason, Err: err}
}

// LoadFile loads and compiles a YAML schema from the given path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML data and compiles it. Every defect that can be found
// without input is reported here, before any line is read.
func Parse(data []byte) (*Schema, error) {
	var raw rawSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalid("document", "malformed YAML", err)
	}

	s := &Schema{
		Types: make(map[string]*FieldType, len(raw.Types)),
	}

	if err := compileArgs(s, raw.Args); err != nil {
		return nil, err
	}

	for name, rt := range raw.Types {
		ft, err := compileType(name, rt)
		if err != nil {
			return nil, err
		}
		s.Types[name] = ft
	}

	ids, defs, err := orderedLineTypes(&raw.LineTypes)
	if err != nil {
		return nil, invalid("line_types", "malformed", err)
	}
	for i, id := range ids {
		lt, err := compileLineType(s, id, defs[i])
		if err != nil {
			return nil, err
		}
		s.LineTypes = append(s.LineTypes, lt)
	}

	return s, nil
}

func compileArgs(s *Schema, args []rawArg) error {
	seen := make(map[string]struct{}, len(args))
	for i, a := range args {
		path := fmt.Sprintf("args[%d]", i)
		if a.Name == "" {
			return invalid(path, "argument name is empty", nil)
		}
		if _, dup := seen[a.Name]; dup {
			return invalid(path, fmt.Sprintf("duplicate argument %q", a.Name), nil)
		}
		seen[a.Name] = struct{}{}

		s.Args = append(s.Args, ArgumentSpec{
			Name:       a.Name,
			Default:    a.Default,
			HasDefault: a.HasDefault,
		})
	}
	return nil
}

func compileType(name string, rt rawType) (*FieldType, error) {
	path := "types." + name

	ft := &FieldType{Name: name}
	switch rt.Type {
	case "timedelta":
		ft.Category = CategoryTimedelta
	case "number":
		ft.Category = CategoryNumber
	default:
		return nil, invalid(path, fmt.Sprintf("unknown type category %q", rt.Type), nil)
	}

	if len(rt.Formats) == 0 {
		return nil, invalid(path, "at least one format is required", nil)
	}

	for i, rf := range rt.Formats {
		f, err := compileFormat(fmt.Sprintf("%s.formats[%d]", path, i), ft.Category, rf)
		if err != nil {
			return nil, err
		}
		ft.Formats = append(ft.Formats, f)
	}

	return ft, nil
}

func compileFormat(path string, cat Category, rf rawFormat) (Format, error) {
	f := Format{Name: rf.Name, Pattern: rf.Format}

	switch rf.Parser {
	case "float":
		f.Kind = KindFloat
	case "datetime":
		f.Kind = KindDatetime
	case "":
		// Number types always convert with a float parse.
		if cat != CategoryNumber {
			return Format{}, invalid(path, "parser is required", nil)
		}
		f.Kind = KindFloat
	default:
		return Format{}, invalid(path, fmt.Sprintf("unknown parser %q", rf.Parser), nil)
	}

	if f.Kind == KindDatetime && f.Pattern == "" {
		return Format{}, invalid(path, "datetime parser requires a format", nil)
	}

	if rf.Normalize != nil {
		rule, err := normalize.Compile(*rf.Normalize)
		if err != nil {
			return Format{}, invalid(path, "bad normalize rule", err)
		}
		f.Normalize = rule
	}

	return f, nil
}

func compileLineType(s *Schema, id string, def rawLineType) (*LineType, error) {
	path := "line_types." + id

	if def.Regex == nil {
		return nil, invalid(path, "regex is required", nil)
	}

	// Patterns match from the start of the line; any further anchoring is
	// left to the pattern itself.
	re, err := regexp.Compile(`^(?:` + *def.Regex + `)`)
	if err != nil {
		return nil, invalid(path, "bad regex", err)
	}

	groups := make(map[string]struct{})
	for _, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = struct{}{}
		}
	}

	lt := &LineType{
		ID:      id,
		Pattern: *def.Regex,
		Regex:   re,
		Fields:  make(map[string]FieldRef, len(def.Fields)),
	}

	for field, ref := range def.Fields {
		fpath := path + ".fields." + field
		if _, ok := groups[field]; !ok {
			return nil, invalid(fpath, "no capture group with this name in regex", nil)
		}

		fr, err := resolveRef(s, fpath, ref)
		if err != nil {
			return nil, err
		}
		lt.Fields[field] = fr
	}

	return lt, nil
}

// resolveRef classifies a field-type reference. Declared type names take
// precedence over the number tag.
func resolveRef(s *Schema, path, ref string) (FieldRef, error) {
	if strings.Contains(ref, subtypeSep) {
		parts := strings.Split(ref, subtypeSep)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return FieldRef{}, invalid(path, fmt.Sprintf("malformed subtype reference %q", ref), nil)
		}

		ft, ok := s.LookupType(parts[0])
		if !ok {
			return FieldRef{}, invalid(path, fmt.Sprintf("unknown type %q", parts[0]), nil)
		}
		if !ft.HasSubtype(parts[1]) {
			logging.WithComponent("schema").WithFields(logrus.Fields{
				"field":   path,
				"type":    parts[0],
				"subtype": parts[1],
			}).Warn("subtype not declared by any format; every value will fail to resolve")
		}

		return FieldRef{Kind: RefSubtype, Text: ref, Type: ft, Subtype: parts[1]}, nil
	}

	if ft, ok := s.LookupType(ref); ok {
		return FieldRef{Kind: RefType, Text: ref, Type: ft}, nil
	}
	if ref == NumberTag {
		return FieldRef{Kind: RefNumber, Text: ref}, nil
	}
	return FieldRef{Kind: RefRaw, Text: ref}, nil
}
