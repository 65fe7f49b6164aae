package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// matchText accepts the response when, trimmed and lower-cased, it equals
// the expected answer or contains a non-empty expected answer.
func matchText(expected, response string) bool {
	e := strings.ToLower(strings.TrimSpace(expected))
	r := strings.ToLower(strings.TrimSpace(response))
	if e == r {
		return true
	}
	return e != "" && strings.Contains(r, e)
}

// toIndex accepts the integral numbers a JSON decoder or a form field may
// produce.
func toIndex(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		i, err := strconv.Atoi(string(t))
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	}
	return 0, false
}
