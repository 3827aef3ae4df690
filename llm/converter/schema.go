package converter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

// numericKeywords are JSON-Schema keywords that must be numbers. Some tool
// definitions carry them as strings ("minLength": "1").
var numericKeywords = map[string]bool{
	"minLength": true, "maxLength": true,
	"minimum": true, "maximum": true,
	"exclusiveMinimum": true, "exclusiveMaximum": true,
	"multipleOf": true,
	"minItems":   true, "maxItems": true,
	"minProperties": true, "maxProperties": true,
}

func convertTools(tools []llm.Tool) ([]providers.Tool, error) {
	var out []providers.Tool
	for _, t := range tools {
		for _, fd := range t.FunctionDeclarations {
			if strings.TrimSpace(fd.Name) == "" {
				return nil, llm.NewError(llm.ErrConversion, "tool declaration without a name")
			}
			params, err := normalizeSchema(fd.Parameters)
			if err != nil {
				return nil, llm.Errorf(llm.ErrConversion, "tool %q has an invalid parameter schema", fd.Name).WithCause(err)
			}
			out = append(out, providers.Tool{
				Type: "function",
				Function: providers.FunctionDefinition{
					Name:        fd.Name,
					Description: fd.Description,
					Parameters:  params,
				},
			})
		}
	}
	return out, nil
}

// normalizeSchema lower-cases type names and turns numeric-string
// constraints into numbers, recursively.
func normalizeSchema(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var schema any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	if _, ok := schema.(map[string]any); !ok {
		return nil, llm.NewError(llm.ErrConversion, "parameter schema must be an object")
	}
	return json.Marshal(normalizeNode(schema))
}

func normalizeNode(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			if s, ok := child.(string); ok {
				switch {
				case numericKeywords[k]:
					if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
						v[k] = f
					}
				case k == "type":
					v[k] = strings.ToLower(s)
				}
				continue
			}
			v[k] = normalizeNode(child)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = normalizeNode(child)
		}
		return v
	default:
		return v
	}
}
