package grading

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScorePlaceholder is rendered in place of a score that cannot be read.
const ScorePlaceholder = "0.0"

// ToNumber normalises numeric values that may arrive as numbers or numeric
// strings. The boolean is false for nil, NaN, infinities and anything unparsable.
func ToNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case Score:
		f = float64(n)
	case *Score:
		if n == nil {
			return 0, false
		}
		f = float64(*n)
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case json.Number:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	case []byte:
		return parseNumber(string(n))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatScore renders a score with one decimal place, or ScorePlaceholder when
// the value is not numeric.
func FormatScore(v interface{}) string {
	f, ok := ToNumber(v)
	if !ok {
		return ScorePlaceholder
	}
	return strconv.FormatFloat(Round1(f), 'f', 1, 64)
}

// Score is a numeric score that decodes from JSON numbers, numeric strings and
// Postgres NUMERIC text alike.
type Score float64

// Float64 returns the raw value.
func (s Score) Float64() float64 {
	return float64(s)
}

// String implements fmt.Stringer.
func (s Score) String() string {
	return FormatScore(s)
}

// MarshalJSON always emits a JSON number.
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', -1, 64)), nil
}

// UnmarshalJSON accepts 87.5, "87.5" and null. Non-numeric strings are rejected.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		f, ok := parseNumber(raw)
		if !ok {
			return fmt.Errorf("grading: invalid score %q", raw)
		}
		*s = Score(f)
		return nil
	}
	f, ok := parseNumber(string(data))
	if !ok {
		return fmt.Errorf("grading: invalid score %s", data)
	}
	*s = Score(f)
	return nil
}

// Scan implements sql.Scanner.
func (s *Score) Scan(src interface{}) error {
	if src == nil {
		*s = 0
		return nil
	}
	f, ok := ToNumber(src)
	if !ok {
		return fmt.Errorf("grading: cannot scan %T into Score", src)
	}
	*s = Score(f)
	return nil
}

// Value implements driver.Valuer.
func (s Score) Value() (driver.Value, error) {
	return float64(s), nil
}
