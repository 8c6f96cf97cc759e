package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taxatlas/taxatlas/internal/model"
)

// PolicyDSL renders the model as a declarative policy document: a list of
// when/apply rules over transaction attributes, suitable for a policy engine.
type PolicyDSL struct{}

func (PolicyDSL) Kind() Kind { return KindPolicyDSL }

type policyDoc struct {
	Version      string       `yaml:"version"`
	Jurisdiction string       `yaml:"jurisdiction"`
	Source       string       `yaml:"source"`
	Policies     []policyRule `yaml:"policies"`
}

type policyRule struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	When  []string     `yaml:"when"`
	Apply policyEffect `yaml:"apply"`
}

type policyEffect struct {
	Effect string   `yaml:"effect"`
	Rate   *float64 `yaml:"rate,omitempty"`
	Amount string   `yaml:"amount,omitempty"`
	Notes  string   `yaml:"notes,omitempty"`
}

func (PolicyDSL) Render(m *model.CanonicalTaxModel) (Artifact, error) {
	doc := policyDoc{
		Version:      configVersion,
		Jurisdiction: m.Country,
		Source:       m.ContentHash(),
		Policies:     []policyRule{},
	}

	primary := m.PrimaryTaxType()
	for i, r := range m.Rates {
		rate := r.Rate
		when := []string{fmt.Sprintf("transaction.jurisdiction == %q", m.Country)}
		if primary != "" {
			when = append(when, fmt.Sprintf("transaction.tax_type == %q", primary))
		}
		for _, c := range r.Conditions {
			when = append(when, conditionExpr(c))
		}
		doc.Policies = append(doc.Policies, policyRule{
			ID:   fmt.Sprintf("rate_%03d", i+1),
			Name: r.Name,
			When: when,
			Apply: policyEffect{
				Effect: "apply_rate",
				Rate:   &rate,
				Notes:  r.Description,
			},
		})
	}

	for i, br := range m.Brackets {
		rate := br.Rate
		when := []string{
			fmt.Sprintf("transaction.jurisdiction == %q", m.Country),
			fmt.Sprintf("transaction.amount >= %s", sqlNumber(br.LowerBound)),
		}
		if br.UpperBound != nil {
			when = append(when, fmt.Sprintf("transaction.amount < %s", sqlNumber(*br.UpperBound)))
		}
		doc.Policies = append(doc.Policies, policyRule{
			ID:   fmt.Sprintf("bracket_%03d", i+1),
			Name: fmt.Sprintf("bracket %d", i+1),
			When: when,
			Apply: policyEffect{
				Effect: "apply_rate",
				Rate:   &rate,
			},
		})
	}

	for i, t := range m.Thresholds {
		doc.Policies = append(doc.Policies, policyRule{
			ID:   fmt.Sprintf("threshold_%03d", i+1),
			Name: t.Name,
			When: []string{
				fmt.Sprintf("transaction.jurisdiction == %q", m.Country),
				fmt.Sprintf("entity.annual_revenue <= %s", sqlRawNumber(t.Amount)),
			},
			Apply: policyEffect{
				Effect: "mark_eligible",
				Amount: t.Amount + " " + t.Currency,
				Notes:  t.Purpose,
			},
		})
	}

	for _, r := range m.Rules {
		when := []string{fmt.Sprintf("transaction.jurisdiction == %q", m.Country)}
		for _, c := range r.Conditions {
			when = append(when, conditionExpr(c))
		}
		doc.Policies = append(doc.Policies, policyRule{
			ID:   r.ID,
			Name: r.Name,
			When: when,
			Apply: policyEffect{
				Effect: r.Effect,
				Rate:   r.Rate,
				Notes:  r.SourceReference,
			},
		})
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal policy: %w", err)
	}
	return Artifact{
		Name:        fmt.Sprintf("%s_tax_policy.yaml", strings.ToLower(m.Country)),
		ContentType: "application/yaml",
		Content:     body,
	}, nil
}

// conditionExpr keeps free-text conditions readable in the DSL without
// pretending they are machine-evaluable expressions.
func conditionExpr(c string) string {
	return fmt.Sprintf("condition(%q)", strings.TrimSpace(c))
}
