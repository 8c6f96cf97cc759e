package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taxatlas/taxatlas/internal/model"
)

const configVersion = "1.0"

// JSONConfig renders the model as a versioned configuration document for
// rule-engine consumption. Field order is fixed by the wire structs, so the
// output is stable across runs.
type JSONConfig struct{}

func (JSONConfig) Kind() Kind { return KindJSONConfig }

type jsonConfigDoc struct {
	Version     string            `json:"version"`
	Country     string            `json:"country"`
	CountryName string            `json:"country_name"`
	ContentHash string            `json:"content_hash"`
	TaxTypes    []string          `json:"tax_types"`
	Rates       []model.Rate      `json:"rates"`
	Brackets    []model.Bracket   `json:"brackets"`
	Thresholds  []model.Threshold `json:"thresholds"`
	Deadlines   []model.Deadline  `json:"deadlines"`
	Rules       []model.Rule      `json:"rules"`
}

func (JSONConfig) Render(m *model.CanonicalTaxModel) (Artifact, error) {
	doc := jsonConfigDoc{
		Version:     configVersion,
		Country:     m.Country,
		CountryName: model.CountryName(m.Country),
		ContentHash: m.ContentHash(),
		TaxTypes:    orEmpty(m.TaxTypes),
		Rates:       orEmptySlice(m.Rates),
		Brackets:    orEmptySlice(m.Brackets),
		Thresholds:  orEmptySlice(m.Thresholds),
		Deadlines:   orEmptySlice(m.Deadlines),
		Rules:       orEmptySlice(m.Rules),
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal config: %w", err)
	}
	return Artifact{
		Name:        fmt.Sprintf("%s_tax_config.json", strings.ToLower(m.Country)),
		ContentType: "application/json",
		Content:     append(body, '\n'),
	}, nil
}

// orEmpty keeps absent categories as [] rather than null in the output.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
