package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// Field values are one of:
//
//	nil       absent (group did not capture, or number type exhausted)
//	string    raw captured text
//	float64   number
//	Duration  elapsed time

// Duration is a signed elapsed time in seconds, kept to microsecond
// resolution. It spans roughly a billion days either way, far beyond
// time.Duration.
type Duration float64

// Seconds returns the duration as a floating-point number of seconds.
func (d Duration) Seconds() float64 {
	return float64(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(d))
}

func (d Duration) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "s"
}

// maxSeconds is the largest magnitude a Duration may hold: 999999999 days
// plus the last microsecond of that day.
const maxSeconds = 999999999*86400 + 86399.999999

// datetimeEpoch is the reference point for datetime formats; it is also the
// date a layout without date directives resolves to.
var datetimeEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// parseNumber converts text to a finite float. Surrounding whitespace is
// ignored.
func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// secondsToDuration converts a count of seconds, rounding to the
// microsecond.
func secondsToDuration(secs float64) (Duration, bool) {
	if math.IsNaN(secs) || math.Abs(secs) > maxSeconds {
		return 0, false
	}
	return Duration(math.Round(secs*1e6) / 1e6), true
}

// parseSeconds is the float format kind.
func parseSeconds(raw string) (Duration, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	return secondsToDuration(f)
}

// parseDatetime is the datetime format kind: raw is parsed with a
// strptime-style layout and measured from datetimeEpoch.
func parseDatetime(raw, layout string) (Duration, bool) {
	t, err := timefmt.Parse(raw, layout)
	if err != nil {
		return 0, false
	}

	// t.Sub saturates about 292 years from the epoch.
	whole := t.Unix() - datetimeEpoch.Unix()
	return secondsToDuration(float64(whole) + float64(t.Nanosecond())/1e9)
}

// toDuration converts a normalization result into a duration. Numbers are
// taken as seconds.
func toDuration(v any) (Duration, error) {
	switch x := v.(type) {
	case Duration:
		return x, nil
	case time.Duration:
		v = x.Seconds()
	}

	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	d, ok := secondsToDuration(f)
	if !ok {
		return 0, fmt.Errorf("%v seconds is out of range", f)
	}
	return d, nil
}

// toFloat converts a numeric normalization result into a float64.
func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		return 0, fmt.Errorf("rule produced %T, want a number", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("rule produced non-finite number %v", f)
	}
	return f, nil
}
