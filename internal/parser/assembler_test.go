package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliosaraiva/logshape/internal/reader"
)

const assemblerSchema = `
types:
  duration:
    type: timedelta
    formats:
      - name: secs
        parser: float
  bytes:
    type: number
    formats:
      - parser: float
line_types:
  request:
    regex: '(?P<verb>[A-Z]+) (?P<path>\S+) (?P<took>\S+)(?: (?P<size>\S+))?'
    fields:
      took: duration
      size: bytes
  verb_only:
    regex: '(?P<verb>[A-Z]+) '
  status:
    regex: 'status=(?P<code>\S+)'
    fields:
      code: number
`

func newTestAssembler(t *testing.T, opts ...Option) *Assembler {
	t.Helper()
	s := mustSchema(t, assemblerSchema)
	return NewAssembler(s, NewResolver(nil), opts...)
}

// line builds input line n.
func line(n int, text string) reader.Line {
	return reader.Line{Text: text, Number: n}
}

// fieldValue returns the value of the named field of rec.
func fieldValue(t *testing.T, rec Record, name string) any {
	t.Helper()
	for _, f := range rec.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("record %s has no field %q", rec.Type, name)
	return nil
}

func TestAssembler_Feed_MultipleMatches(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.Feed(line(1, "GET /index 12.5 512"))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, Record{
		Line: 1,
		Type: "request",
		Fields: []Field{
			{Name: "verb", Value: "GET"},
			{Name: "path", Value: "/index"},
			{Name: "took", Value: Duration(12.5)},
			{Name: "size", Value: float64(512)},
		},
	}, recs[0])

	assert.Equal(t, Record{
		Line:   1,
		Type:   "verb_only",
		Fields: []Field{{Name: "verb", Value: "GET"}},
	}, recs[1])
}

func TestAssembler_Feed_AbsentGroupNotCoerced(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.Feed(line(1, "GET /index 3"))
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	assert.Nil(t, fieldValue(t, recs[0], "size"))
	assert.Equal(t, Duration(3), fieldValue(t, recs[0], "took"))
}

func TestAssembler_Feed_NumberTypeExhaustionIsAbsent(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.Feed(line(1, "GET /index 3 unknown"))
	require.NoError(t, err)

	assert.Nil(t, fieldValue(t, recs[0], "size"))
}

func TestAssembler_Feed_UsesReaderLineNumber(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.Feed(line(42, "status=404"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 42, recs[0].Line)
	assert.Equal(t, []Field{{Name: "code", Value: float64(404)}}, recs[0].Fields)
}

func TestAssembler_Feed_FatalFieldError(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Feed(line(1, "status=200"))
	require.NoError(t, err)

	recs, err := a.Feed(line(2, "GET /index soon"))
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.True(t, errors.Is(err, ErrNoFormatMatched))

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Line)
	assert.Equal(t, "request", fe.LineType)
	assert.Equal(t, "took", fe.Field)
	assert.Equal(t, "soon", fe.Raw)
	assert.Equal(t, "duration", fe.TypeName)
	assert.Contains(t, fe.Error(), "line 2: request.took")
}

func TestAssembler_Feed_NotANumber(t *testing.T) {
	a := newTestAssembler(t)

	_, err := a.Feed(line(1, "status=ok"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotANumber))
}

func TestAssembler_KeepGoing(t *testing.T) {
	a := newTestAssembler(t, WithKeepGoing())

	recs, err := a.Feed(line(1, "GET /index soon"))
	require.NoError(t, err)
	// The failing request match is skipped; the other line type still
	// produces its record.
	require.Len(t, recs, 1)
	assert.Equal(t, "verb_only", recs[0].Type)

	recs, err = a.Feed(line(2, "status=nope"))
	require.NoError(t, err)
	assert.Empty(t, recs)

	errs := a.Errors()
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], ErrNoFormatMatched))
	assert.True(t, errors.Is(errs[1], ErrNotANumber))
}

func TestAssembler_ParseAll(t *testing.T) {
	a := newTestAssembler(t, WithSource("access.log"))

	input := "status=200\nnoise\nPOST /login 0.25\n"
	recs, err := a.ParseAll(reader.New(strings.NewReader(input)))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, 1, recs[0].Line)
	assert.Equal(t, "status", recs[0].Type)
	assert.Equal(t, 3, recs[1].Line)
	assert.Equal(t, "request", recs[1].Type)
	assert.Equal(t, 3, recs[2].Line)
	assert.Equal(t, "verb_only", recs[2].Type)

	for _, r := range recs {
		assert.Equal(t, "access.log", r.Source)
	}
}

func TestAssembler_ParseAll_NoRecordsOnFailure(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.ParseAll(reader.New(strings.NewReader("status=200\nstatus=bad\nstatus=201\n")))
	require.Error(t, err)
	assert.Nil(t, recs)
}

func TestAssembler_ParseAll_LineNumbersFromReader(t *testing.T) {
	a := newTestAssembler(t, WithKeepGoing())

	input := "\n\nstatus=bad\n\nstatus=201\n"
	recs, err := a.ParseAll(reader.New(strings.NewReader(input)))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 5, recs[0].Line)

	var fe *FieldError
	require.Len(t, a.Errors(), 1)
	require.True(t, errors.As(a.Errors()[0], &fe))
	assert.Equal(t, 3, fe.Line)
}

func TestAssembler_ParseAll_EmptyInput(t *testing.T) {
	a := newTestAssembler(t)

	recs, err := a.ParseAll(reader.New(strings.NewReader("")))
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}
