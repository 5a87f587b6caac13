package schema

// OutputJSONSchema renders the strict JSON schema of the output object. Every
// output is required and no other properties are allowed, which is what
// structured-output backends expect in strict mode.
func (s *Schema) OutputJSONSchema() map[string]any {
	outputs := s.Outputs()
	properties := make(map[string]any, len(outputs))
	required := make([]string, 0, len(outputs))
	for _, field := range outputs {
		properties[field.Name] = fieldJSONSchema(field)
		required = append(required, field.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldJSONSchema(field Field) map[string]any {
	var rendered map[string]any
	switch field.Type {
	case String:
		rendered = map[string]any{"type": "string"}
	case StringList:
		rendered = stringArraySchema()
	case StringListMapType:
		rendered = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":    map[string]any{"type": "string"},
					"values": stringArraySchema(),
				},
				"required":             []string{"key", "values"},
				"additionalProperties": false,
			},
		}
	default:
		rendered = map[string]any{}
	}
	if field.Description != "" {
		rendered["description"] = field.Description
	}
	return rendered
}

func stringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}
