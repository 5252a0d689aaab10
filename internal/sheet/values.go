package sheet

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Text decodes any JSON scalar into a string. Falsy values (null, false, a
// numeric zero) and missing values decode to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, string(b) == "null", string(b) == "false":
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		if v, err := strconv.ParseFloat(string(b), 64); err == nil && v == 0 {
			*t = ""
			return nil
		}
		*t = Text(b)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Number decodes numbers, numeric strings and booleans; anything else,
// including NaN and infinities, becomes 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = 0
	if len(b) == 0 {
		return nil
	}
	switch {
	case string(b) == "true":
		*n = 1
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*n = Number(parseFloatOrZero(s))
	default:
		*n = Number(parseFloatOrZero(string(b)))
	}
	return nil
}

func (n Number) Float() float64 {
	return float64(n)
}

func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
