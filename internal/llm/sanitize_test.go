package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObjectPlain(t *testing.T) {
	doc, err := ExtractJSONObject([]byte(`{"summary": "ok", "tax_types": ["VAT"]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok", "tax_types": ["VAT"]}`, string(doc))
}

func TestExtractJSONObjectFenced(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"summary\": \"ok\", \"tax_types\": []}\n```\nDone."
	doc, err := ExtractJSONObject([]byte(raw))
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok", "tax_types": []}`, string(doc))
}

func TestExtractJSONObjectWithSurroundingProse(t *testing.T) {
	raw := `Sure! {"summary": "has } inside a \" string", "tax_types": ["VAT"]} hope that helps`
	doc, err := ExtractJSONObject([]byte(raw))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(doc, &m))
	assert.Equal(t, `has } inside a " string`, m["summary"])
}

func TestExtractJSONObjectMissing(t *testing.T) {
	_, err := ExtractJSONObject([]byte("no json here"))
	assert.Error(t, err)

	_, err = ExtractJSONObject([]byte(`{"unterminated": true`))
	assert.Error(t, err)
}

func TestSanitizeResponseDropsUnknownAndNull(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	doc := []byte(`{
		"summary": "ok",
		"tax_types": ["VAT"],
		"rates": [null, {"name": "standard", "rate": 0.2, "description": null}],
		"reasoning": "extra field the model added",
		"brackets": null
	}`)

	cleaned, dropped, err := SanitizeResponse(schema, doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reasoning", "brackets"}, dropped)

	var m map[string]any
	require.NoError(t, json.Unmarshal(cleaned, &m))
	assert.NotContains(t, m, "reasoning")
	assert.NotContains(t, m, "brackets")

	rates := m["rates"].([]any)
	require.Len(t, rates, 1)
	assert.NotContains(t, rates[0].(map[string]any), "description")
}

func TestValidateAcceptsMinimalDocument(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	doc := []byte(`{"summary": "VAT overview", "tax_types": ["VAT"]}`)
	assert.NoError(t, ValidateJSONAgainstSchema(schema, doc))
}

func TestValidateAcceptsPercentageRates(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	doc := []byte(`{
		"summary": "ICMS rules",
		"tax_types": ["ICMS"],
		"rates": [{"name": "standard_rate", "rate": 17}]
	}`)
	assert.NoError(t, ValidateJSONAgainstSchema(schema, doc))
}

func TestValidateRejectsUnknownTopLevelKey(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	doc := []byte(`{"summary": "x", "tax_types": [], "chain_of_thought": "..."}`)
	assert.Error(t, ValidateJSONAgainstSchema(schema, doc))
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"summary": "x"}`)))
}

func TestSanitizeThenValidateRoundTrip(t *testing.T) {
	schema := BuildTaxModelJSONSchema()
	doc := []byte(`{"summary": "x", "tax_types": ["VAT"], "extra": 1, "warnings": null}`)

	require.Error(t, ValidateJSONAgainstSchema(schema, doc))
	cleaned, _, err := SanitizeResponse(schema, doc)
	require.NoError(t, err)
	assert.NoError(t, ValidateJSONAgainstSchema(schema, cleaned))
}
