package llm

// BuildTaxModelJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate the response.
//
// Rates may come back as fractions or bare percentages (17 for 17%); the
// schema admits [0,100] and the extractor normalizes to fractions post-hoc.
func BuildTaxModelJSONSchema() map[string]any {
	rateProp := map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0}

	rate := objectProp(map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"rate":        rateProp,
		"description": map[string]any{"type": "string"},
		"conditions":  stringArrayProp(),
		"exemptions":  stringArrayProp(),
	}, []string{"name", "rate"})

	bracket := objectProp(map[string]any{
		"lower_bound":  map[string]any{"type": "number", "minimum": 0.0},
		"upper_bound":  map[string]any{"type": []any{"number", "null"}},
		"rate":         rateProp,
		"fixed_amount": map[string]any{"type": []any{"number", "null"}},
	}, []string{"lower_bound", "rate"})

	threshold := objectProp(map[string]any{
		"name":     map[string]any{"type": "string", "minLength": 1},
		"amount":   map[string]any{"type": []any{"number", "string"}},
		"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"purpose":  map[string]any{"type": "string"},
	}, []string{"name", "amount"})

	deadline := objectProp(map[string]any{
		"name":          map[string]any{"type": "string", "minLength": 1},
		"frequency":     map[string]any{"type": "string"},
		"day_of_period": map[string]any{"type": []any{"integer", "null"}},
		"fixed_date":    map[string]any{"type": []any{"string", "null"}, "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"description":   map[string]any{"type": "string"},
	}, []string{"name", "frequency"})

	rule := objectProp(map[string]any{
		"id":               map[string]any{"type": "string"},
		"name":             map[string]any{"type": "string"},
		"conditions":       stringArrayProp(),
		"effect":           map[string]any{"type": "string"},
		"tax_type":         map[string]any{"type": "string"},
		"rate":             map[string]any{"type": []any{"number", "null"}},
		"source_reference": map[string]any{"type": "string"},
	}, []string{"name", "effect"})

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"summary":          map[string]any{"type": "string"},
			"tax_types":        stringArrayProp(),
			"rates":            arrayProp(rate),
			"brackets":         arrayProp(bracket),
			"thresholds":       arrayProp(threshold),
			"deadlines":        arrayProp(deadline),
			"rules":            arrayProp(rule),
			"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"warnings":         stringArrayProp(),
		},
		"required": []string{"summary", "tax_types"},
	}
}

func objectProp(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func arrayProp(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func stringArrayProp() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}
