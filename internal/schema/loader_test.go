package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `
args:
  - offset
  - name: scale
    default: 1000
types:
  duration:
    type: timedelta
    formats:
      - name: secs
        parser: float
      - name: clock
        parser: datetime
        format: "%H:%M:%S"
        normalize: value - float(args.offset)
  size:
    type: number
    formats:
      - parser: float
        normalize: value * args.scale
line_types:
  request:
    regex: '(?P<verb>[A-Z]+) (?P<path>\S+) (?P<took>\S+)'
    fields:
      took: duration
  timing:
    regex: '(?P<verb>[A-Z]+) \S+ (?P<took>\S+)(?: (?P<bytes>\d+))?'
    fields:
      took: duration::clock
      bytes: size
  status:
    regex: 'status=(?P<code>\d+)'
    fields:
      code: number
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)

	require.Len(t, s.Args, 2)
	assert.Equal(t, ArgumentSpec{Name: "offset"}, s.Args[0])
	assert.Equal(t, ArgumentSpec{Name: "scale", Default: 1000, HasDefault: true}, s.Args[1])

	dur, ok := s.LookupType("duration")
	require.True(t, ok)
	assert.Equal(t, CategoryTimedelta, dur.Category)
	require.Len(t, dur.Formats, 2)
	assert.Equal(t, "secs", dur.Formats[0].Name)
	assert.Equal(t, KindFloat, dur.Formats[0].Kind)
	assert.Nil(t, dur.Formats[0].Normalize)
	assert.Equal(t, KindDatetime, dur.Formats[1].Kind)
	assert.Equal(t, "%H:%M:%S", dur.Formats[1].Pattern)
	require.NotNil(t, dur.Formats[1].Normalize)
	assert.Equal(t, "value - float(args.offset)", dur.Formats[1].Normalize.Source())

	size, ok := s.LookupType("size")
	require.True(t, ok)
	assert.Equal(t, CategoryNumber, size.Category)
	assert.Equal(t, KindFloat, size.Formats[0].Kind)

	// Declaration order is kept.
	require.Len(t, s.LineTypes, 3)
	assert.Equal(t, "request", s.LineTypes[0].ID)
	assert.Equal(t, "timing", s.LineTypes[1].ID)
	assert.Equal(t, "status", s.LineTypes[2].ID)

	timing := s.LineTypes[1]
	assert.Equal(t, RefSubtype, timing.Fields["took"].Kind)
	assert.Equal(t, "duration", timing.Fields["took"].TypeName())
	assert.Equal(t, "clock", timing.Fields["took"].Subtype)
	assert.Equal(t, RefType, timing.Fields["bytes"].Kind)
	assert.Equal(t, RefNumber, s.LineTypes[2].Fields["code"].Kind)
}

func TestParse_RegexAnchoredAtStart(t *testing.T) {
	s, err := Parse([]byte(`
line_types:
  greet:
    regex: 'hello (?P<who>\w+)'
`))
	require.NoError(t, err)

	re := s.LineTypes[0].Regex
	assert.True(t, re.MatchString("hello world and more"))
	assert.False(t, re.MatchString("say hello world"))
	assert.Empty(t, s.LineTypes[0].Fields)
}

func TestParse_AlternationAnchoredAtStart(t *testing.T) {
	s, err := Parse([]byte(`
line_types:
  either:
    regex: 'foo|bar'
`))
	require.NoError(t, err)

	re := s.LineTypes[0].Regex
	assert.True(t, re.MatchString("bar baz"))
	assert.False(t, re.MatchString("xbar"))
}

func TestResolveRef(t *testing.T) {
	s, err := Parse([]byte(`
types:
  number:
    type: number
    formats:
      - parser: float
        normalize: value * 2
  duration:
    type: timedelta
    formats:
      - name: secs
        parser: float
`))
	require.NoError(t, err)

	tests := []struct {
		name     string
		ref      string
		wantKind RefKind
		wantType string
		wantSub  string
	}{
		{name: "declared type", ref: "duration", wantKind: RefType, wantType: "duration"},
		{name: "subtype", ref: "duration::secs", wantKind: RefSubtype, wantType: "duration", wantSub: "secs"},
		{name: "undeclared subtype", ref: "duration::clock", wantKind: RefSubtype, wantType: "duration", wantSub: "clock"},
		{name: "declared type shadows number tag", ref: "number", wantKind: RefType, wantType: "number"},
		{name: "pass through", ref: "string", wantKind: RefRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := resolveRef(s, "test", tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ref.Kind)
			assert.Equal(t, tt.wantType, ref.TypeName())
			assert.Equal(t, tt.wantSub, ref.Subtype)
			assert.Equal(t, tt.ref, ref.Text)
		})
	}
}

func TestParse_NumberTagWithoutType(t *testing.T) {
	s, err := Parse([]byte(`
line_types:
  n:
    regex: '(?P<v>\d+)'
    fields:
      v: number
`))
	require.NoError(t, err)
	assert.Equal(t, RefNumber, s.LineTypes[0].Fields["v"].Kind)
}

func TestParse_InvalidSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{
			name:   "malformed yaml",
			schema: "types: [",
		},
		{
			name: "field without capture group",
			schema: `
line_types:
  a:
    regex: '(?P<x>\d+)'
    fields:
      y: number
`,
		},
		{
			name: "bad regex",
			schema: `
line_types:
  a:
    regex: '(?P<x>\d+'
`,
		},
		{
			name: "missing regex",
			schema: `
line_types:
  a:
    fields: {}
`,
		},
		{
			name: "duplicate line type",
			schema: `
line_types:
  a:
    regex: 'x'
  a:
    regex: 'y'
`,
		},
		{
			name: "unknown type in subtype reference",
			schema: `
line_types:
  a:
    regex: '(?P<x>\d+)'
    fields:
      x: nope::secs
`,
		},
		{
			name: "malformed subtype reference",
			schema: `
types:
  d:
    type: timedelta
    formats: [{parser: float}]
line_types:
  a:
    regex: '(?P<x>\d+)'
    fields:
      x: d::a::b
`,
		},
		{
			name: "unknown category",
			schema: `
types:
  d:
    type: string
    formats: [{parser: float}]
`,
		},
		{
			name: "no formats",
			schema: `
types:
  d:
    type: timedelta
    formats: []
`,
		},
		{
			name: "unknown parser",
			schema: `
types:
  d:
    type: timedelta
    formats: [{parser: hex}]
`,
		},
		{
			name: "timedelta format without parser",
			schema: `
types:
  d:
    type: timedelta
    formats: [{name: x}]
`,
		},
		{
			name: "datetime without format",
			schema: `
types:
  d:
    type: timedelta
    formats: [{parser: datetime}]
`,
		},
		{
			name: "bad normalize rule",
			schema: `
types:
  d:
    type: timedelta
    formats: [{parser: float, normalize: "value +"}]
`,
		},
		{
			name: "argument without name",
			schema: `
args:
  - default: 3
`,
		},
		{
			name: "duplicate argument",
			schema: `
args: [a, a]
`,
		},
		{
			name:   "line types not a mapping",
			schema: "line_types: [a, b]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.schema))
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrInvalidSchema), "got %v", err)
		})
	}
}

func TestParse_NumberFormatDefaultsToFloat(t *testing.T) {
	s, err := Parse([]byte(`
types:
  n:
    type: number
    formats: [{name: plain}]
`))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, s.Types["n"].Formats[0].Kind)
}

func TestParse_NullDefaultIsRequired(t *testing.T) {
	s, err := Parse([]byte(`
args:
  - name: offset
    default: ~
`))
	require.NoError(t, err)
	assert.False(t, s.Args[0].HasDefault)
}

func TestFieldType_Candidates(t *testing.T) {
	ft := &FieldType{
		Name:     "d",
		Category: CategoryTimedelta,
		Formats: []Format{
			{Name: "a", Kind: KindFloat},
			{Name: "b", Kind: KindDatetime, Pattern: "%S"},
			{Name: "a", Kind: KindDatetime, Pattern: "%M"},
			{Kind: KindFloat},
		},
	}

	assert.Len(t, ft.Candidates(""), 4)

	got := ft.Candidates("a")
	require.Len(t, got, 2)
	assert.Equal(t, KindFloat, got[0].Kind)
	assert.Equal(t, "%M", got[1].Pattern)

	assert.Empty(t, ft.Candidates("missing"))
	assert.True(t, ft.HasSubtype("b"))
	assert.False(t, ft.HasSubtype("c"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, s.LineTypes, 3)

	_, err = LoadFile(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidSchema))
}
