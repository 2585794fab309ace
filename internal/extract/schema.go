package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tlacroix/receiptledger/internal/common"
)

// BuildExtractionSchema returns the JSON-Schema the extractor output must
// match. It is deliberately loose about field presence — extraction is
// allowed to miss fields — but strict about types, because a wrongly
// typed amount would otherwise be silently dropped downstream.
func BuildExtractionSchema() map[string]any {
	amount := map[string]any{"type": []string{"number", "string", "null"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"date":          map[string]any{"type": []string{"string", "null"}},
			"ticket_number": map[string]any{"type": []string{"string", "null"}},
			"total_ttc":     amount,
			"total_ht":      amount,
			"total_tva":     amount,
			"merchant_name": map[string]any{"type": []string{"string", "null"}},
			"keywords": map[string]any{
				"type":  []string{"array", "null"},
				"items": map[string]any{"type": "string"},
			},
		},
	}
}

var compiledSchema = mustCompile(BuildExtractionSchema())

func validateSchema(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return common.NewUpstreamParseError("invalid JSON", string(data))
	}
	if err := compiledSchema.Validate(v); err != nil {
		return common.NewUpstreamParseError(fmt.Sprintf("extraction does not match schema: %v", err), string(data))
	}
	return nil
}

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal extraction schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add extraction schema: %v", err))
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		panic(fmt.Sprintf("compile extraction schema: %v", err))
	}
	return schema
}
