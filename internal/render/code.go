package render

import (
	"fmt"
	"strings"

	"github.com/taxatlas/taxatlas/internal/model"
)

// CodeGen renders a self-contained tax computation module in the configured
// target language. The output uses only the target's standard library, with
// every extracted rate surfaced as a named constant and brackets applied
// progressively.
type CodeGen struct {
	Target string // "go" or "python"
}

func (CodeGen) Kind() Kind { return KindCode }

func (g CodeGen) Render(m *model.CanonicalTaxModel) (Artifact, error) {
	switch g.Target {
	case "", "go":
		return renderGoCode(m), nil
	case "python":
		return renderPythonCode(m), nil
	default:
		return Artifact{}, fmt.Errorf("unsupported code target %q", g.Target)
	}
}

func renderGoCode(m *model.CanonicalTaxModel) Artifact {
	lower := strings.ToLower(m.Country)
	var b strings.Builder

	names := map[string]bool{}
	rateIdents := make([]string, len(m.Rates))
	for i, r := range m.Rates {
		rateIdents[i] = uniqueIdent(names, goConstName(r.Name), "")
	}
	thresholdIdents := make([]string, len(m.Thresholds))
	for i, t := range m.Thresholds {
		thresholdIdents[i] = uniqueIdent(names, goConstName(t.Name), "")
	}

	fmt.Fprintf(&b, "// Package %stax computes %s taxes for %s.\n", lower, m.PrimaryTaxType(), model.CountryName(m.Country))
	fmt.Fprintf(&b, "// Generated from source document %s; review before production use.\n", m.ContentHash())
	fmt.Fprintf(&b, "//\n// Dependencies: %s\n", manifestLine(nil))
	fmt.Fprintf(&b, "package %stax\n\n", lower)

	if len(m.Rates) > 0 {
		b.WriteString("// Tax rates as decimal fractions.\nconst (\n")
		for i, r := range m.Rates {
			fmt.Fprintf(&b, "\t%s = %s\n", rateIdents[i], sqlNumber(r.Rate))
		}
		b.WriteString(")\n\n")
	}

	if len(m.Thresholds) > 0 {
		b.WriteString("// Monetary thresholds in the jurisdiction's currency.\nconst (\n")
		for i, t := range m.Thresholds {
			fmt.Fprintf(&b, "\t%s = %s // %s\n", thresholdIdents[i], sqlRawNumber(t.Amount), t.Currency)
		}
		b.WriteString(")\n\n")
	}

	b.WriteString("// Bracket is one progressive tax band. A nil Upper means unbounded.\n")
	b.WriteString("type Bracket struct {\n\tLower  float64\n\tUpper  *float64\n\tRate   float64\n\tFixed  float64\n}\n\n")

	b.WriteString("func f(v float64) *float64 { return &v }\n\n")
	b.WriteString("// Brackets in ascending order of lower bound.\nvar Brackets = []Bracket{\n")
	for _, br := range m.Brackets {
		upper := "nil"
		if br.UpperBound != nil {
			upper = fmt.Sprintf("f(%s)", sqlNumber(*br.UpperBound))
		}
		fixed := "0"
		if br.FixedAmount != nil {
			fixed = sqlNumber(*br.FixedAmount)
		}
		fmt.Fprintf(&b, "\t{Lower: %s, Upper: %s, Rate: %s, Fixed: %s},\n",
			sqlNumber(br.LowerBound), upper, sqlNumber(br.Rate), fixed)
	}
	b.WriteString("}\n\n")

	b.WriteString(`// ComputeTax applies the progressive brackets to a taxable amount. When no
// brackets were extracted it falls back to the first flat rate, or zero.
func ComputeTax(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	if len(Brackets) == 0 {
`)
	if len(rateIdents) > 0 {
		fmt.Fprintf(&b, "\t\treturn amount * %s\n", rateIdents[0])
	} else {
		b.WriteString("\t\treturn 0\n")
	}
	b.WriteString(`	}
	var tax float64
	for _, br := range Brackets {
		if amount <= br.Lower {
			break
		}
		upper := amount
		if br.Upper != nil && *br.Upper < amount {
			upper = *br.Upper
		}
		tax += (upper-br.Lower)*br.Rate + br.Fixed
	}
	return tax
}
`)

	return Artifact{
		Name:        fmt.Sprintf("%s_tax.go", lower),
		ContentType: "text/x-go",
		Content:     []byte(b.String()),
	}
}

func renderPythonCode(m *model.CanonicalTaxModel) Artifact {
	lower := strings.ToLower(m.Country)
	var b strings.Builder

	names := map[string]bool{}
	rateIdents := make([]string, len(m.Rates))
	for i, r := range m.Rates {
		rateIdents[i] = uniqueIdent(names, pyConstName(r.Name), "_")
	}
	thresholdIdents := make([]string, len(m.Thresholds))
	for i, t := range m.Thresholds {
		thresholdIdents[i] = uniqueIdent(names, pyConstName(t.Name), "_")
	}

	fmt.Fprintf(&b, "\"\"\"%s tax computation for %s.\n\n", m.PrimaryTaxType(), model.CountryName(m.Country))
	fmt.Fprintf(&b, "Generated from source document %s; review before production use.\n", m.ContentHash())
	fmt.Fprintf(&b, "Dependencies: %s\n\"\"\"\n\n", manifestLine(nil))
	b.WriteString("from typing import Optional\n\n")

	for i, r := range m.Rates {
		fmt.Fprintf(&b, "%s = %s\n", rateIdents[i], sqlNumber(r.Rate))
	}
	if len(m.Rates) > 0 {
		b.WriteString("\n")
	}
	for i, t := range m.Thresholds {
		fmt.Fprintf(&b, "%s = %s  # %s\n", thresholdIdents[i], sqlRawNumber(t.Amount), t.Currency)
	}
	if len(m.Thresholds) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("# (lower, upper or None, rate, fixed) in ascending order of lower bound.\n")
	b.WriteString("BRACKETS: list[tuple[float, Optional[float], float, float]] = [\n")
	for _, br := range m.Brackets {
		upper := "None"
		if br.UpperBound != nil {
			upper = sqlNumber(*br.UpperBound)
		}
		fixed := "0"
		if br.FixedAmount != nil {
			fixed = sqlNumber(*br.FixedAmount)
		}
		fmt.Fprintf(&b, "    (%s, %s, %s, %s),\n", sqlNumber(br.LowerBound), upper, sqlNumber(br.Rate), fixed)
	}
	b.WriteString("]\n\n\n")

	b.WriteString("def compute_tax(amount: float) -> float:\n")
	b.WriteString("    \"\"\"Apply the progressive brackets to a taxable amount.\n\n")
	b.WriteString("    Falls back to the first flat rate when no brackets were extracted.\n    \"\"\"\n")
	b.WriteString("    if amount <= 0:\n        return 0.0\n")
	b.WriteString("    if not BRACKETS:\n")
	if len(rateIdents) > 0 {
		fmt.Fprintf(&b, "        return amount * %s\n", rateIdents[0])
	} else {
		b.WriteString("        return 0.0\n")
	}
	b.WriteString(`    tax = 0.0
    for lower, upper, rate, fixed in BRACKETS:
        if amount <= lower:
            break
        top = amount if upper is None or upper > amount else upper
        tax += (top - lower) * rate + fixed
    return tax
`)

	return Artifact{
		Name:        fmt.Sprintf("%s_tax.py", lower),
		ContentType: "text/x-python",
		Content:     []byte(b.String()),
	}
}

// manifestLine formats the dependency manifest declared in the generated
// artifact's header. Both targets emit standard-library-only code today, so
// the manifest is empty, but it is always declared so consumers can rely on
// the contract surface being present.
func manifestLine(deps []string) string {
	if len(deps) == 0 {
		return "none (standard library only)"
	}
	return strings.Join(deps, ", ")
}

// uniqueIdent reserves an identifier, appending a numeric suffix when two
// entity names normalize to the same one, so the generated module never
// declares a constant twice.
func uniqueIdent(seen map[string]bool, name, sep string) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s%s%d", name, sep, i)
		if !seen[cand] {
			seen[cand] = true
			return cand
		}
	}
}

// goConstName turns a free-text entity name into an exported Go identifier.
func goConstName(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			if upperNext {
				b.WriteRune(r &^ 0x20)
				upperNext = false
			} else {
				b.WriteRune(r)
			}
		case r >= '0' && r <= '9':
			if b.Len() == 0 {
				b.WriteString("N")
			}
			b.WriteRune(r)
			upperNext = true
		default:
			upperNext = true
		}
	}
	if b.Len() == 0 {
		return "UnnamedRate"
	}
	return b.String()
}

// pyConstName turns a free-text entity name into an UPPER_SNAKE identifier.
func pyConstName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r &^ 0x20)
			lastUnderscore = false
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if b.Len() == 0 && r >= '0' && r <= '9' {
				b.WriteString("N")
			}
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteString("_")
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "UNNAMED_RATE"
	}
	return out
}
