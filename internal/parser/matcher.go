package parser

import (
	"github.com/juliosaraiva/logshape/internal/schema"
)

// Capture is one named group of a match.
type Capture struct {
	Name string
	Text string
	// Matched is false when the group did not participate in the match.
	Matched bool
}

// Match pairs a line type with the captures it produced on a line.
type Match struct {
	LineType *schema.LineType
	Captures []Capture
}

// Matcher evaluates every line type against a line.
type Matcher struct {
	lineTypes []*schema.LineType
}

// NewMatcher creates a matcher over the schema's line types, preserving
// their declared order.
func NewMatcher(s *schema.Schema) *Matcher {
	return &Matcher{lineTypes: s.LineTypes}
}

// Match returns every line type matching line, in declaration order. All
// line types are tried; a line may yield several matches.
func (m *Matcher) Match(line string) []Match {
	var out []Match

	for _, lt := range m.lineTypes {
		loc := lt.Regex.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		names := lt.Regex.SubexpNames()
		captures := make([]Capture, 0, len(names)-1)
		for i := 1; i < len(names); i++ {
			if names[i] == "" {
				continue
			}

			c := Capture{Name: names[i]}
			if start, end := loc[2*i], loc[2*i+1]; start >= 0 {
				c.Text = line[start:end]
				c.Matched = true
			}
			captures = append(captures, c)
		}

		out = append(out, Match{LineType: lt, Captures: captures})
	}

	return out
}
