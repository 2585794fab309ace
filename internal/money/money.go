// Package money normalizes externally produced amounts into decimals.
//
// Extractor output is noisy: amounts arrive as JSON numbers, as
// locale-formatted strings ("1 234,56"), as empty strings or as null.
// Parse folds all of that into either a finite decimal or nil, pushing
// validation to the caller.
package money

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse converts a raw JSON value into a decimal, or nil when the value
// carries no usable number. It never returns an error.
func Parse(v any) *decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d
	case int64:
		d := decimal.NewFromInt(t)
		return &d
	case json.Number:
		return ParseString(t.String())
	case string:
		return ParseString(t)
	case *decimal.Decimal:
		return t
	case decimal.Decimal:
		return &t
	default:
		return nil
	}
}

// ParseString parses a locale-formatted amount: regular, no-break or
// narrow no-break spaces as thousands separators, comma as the decimal
// separator. Empty or non-numeric input yields nil.
func ParseString(s string) *decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, strings.TrimSpace(s))

	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}

// Round2 rounds to 2 fractional digits, half away from zero. Operating
// on the decimal type avoids the binary-float 2.005 -> 2.00 misround.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func fromFloat(f float64) *decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}
