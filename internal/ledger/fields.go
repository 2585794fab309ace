package ledger

import (
	"encoding/json"
	"strconv"
	"strings"
)

// lookupField tries an ordered list of dot-separated field paths against
// a decoded JSON object and returns the first present, non-empty value as
// a string. The ledger API has shipped several response shapes over time
// (flat vs. nested "data", case variants); modelling them as path
// candidates keeps the variants in one place.
func lookupField(body []byte, paths ...string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return "", false
	}
	for _, path := range paths {
		if v, ok := walk(m, strings.Split(path, ".")); ok {
			if s := asString(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func walk(m map[string]any, segments []string) (any, bool) {
	var cur any = m
	for _, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// Document ids come back numeric in some variants.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
