package extract

import (
	"encoding/json"
	"strings"

	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/money"
)

// JSONObject recovers a single well-formed JSON object from raw extractor
// text that may be wrapped in Markdown code fences or surrounded by
// explanatory prose.
//
// First-`{`/last-`}` slicing is correct for one top-level object with
// arbitrary nesting, but will mis-slice a response containing two sibling
// objects. That shape has never been observed upstream; we keep the
// simple slice rather than a speculative bracket counter.
func JSONObject(text string) ([]byte, error) {
	s := strings.TrimSpace(text)

	// Strip a leading fence marker, optionally tagged "json", and a
	// trailing one.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return nil, common.NewUpstreamParseError("no JSON object found", s)
	}

	slice := s[start : end+1]
	if !json.Valid([]byte(slice)) {
		return nil, common.NewUpstreamParseError("invalid JSON", slice)
	}
	return []byte(slice), nil
}

// Decode validates the recovered object against the extraction schema and
// normalizes it into a Result. Amounts pass through money.Parse, so
// locale-formatted strings and raw numbers land on the same decimals.
func Decode(raw []byte) (Result, error) {
	if err := validateSchema(raw); err != nil {
		return Result{}, err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Result{}, common.NewUpstreamParseError("invalid JSON", string(raw))
	}

	res := Result{
		Date:         stringField(m, "date"),
		TicketNumber: stringField(m, "ticket_number"),
		TotalTTC:     money.Parse(m["total_ttc"]),
		TotalHT:      money.Parse(m["total_ht"]),
		TotalTVA:     money.Parse(m["total_tva"]),
		MerchantName: stringField(m, "merchant_name"),
	}
	if kws, ok := m["keywords"].([]any); ok {
		for _, kw := range kws {
			if s, ok := kw.(string); ok && strings.TrimSpace(s) != "" {
				res.Keywords = append(res.Keywords, strings.TrimSpace(s))
			}
		}
	}
	return res, nil
}

// ParseResponse is the full path from free-form extractor text to a
// normalized Result plus the recovered raw JSON.
func ParseResponse(text string) (Result, []byte, error) {
	raw, err := JSONObject(text)
	if err != nil {
		return Result{}, nil, err
	}
	res, err := Decode(raw)
	if err != nil {
		return Result{}, raw, err
	}
	return res, raw, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
