package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/taxatlas/taxatlas/internal/model"
)

// Workbook renders a human-review XLSX with one sheet per entity category,
// so analysts can audit an extraction without reading JSON.
type Workbook struct{}

func (Workbook) Kind() Kind { return KindReport }

func (Workbook) Render(m *model.CanonicalTaxModel) (Artifact, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const overview = "Overview"
	f.SetSheetName("Sheet1", overview)
	writeRows(f, overview, [][]any{
		{"Country", m.Country},
		{"Country Name", model.CountryName(m.Country)},
		{"Language", m.LanguageDetected},
		{"Tax Types", strings.Join(m.TaxTypes, ", ")},
		{"Confidence", m.ExtractionConfidence},
		{"Content Hash", m.ContentHash()},
		{"Summary", m.Summary},
	})

	rateRows := [][]any{{"Name", "Rate", "Description", "Conditions", "Exemptions"}}
	for _, r := range m.Rates {
		rateRows = append(rateRows, []any{
			r.Name, r.Rate, r.Description,
			strings.Join(r.Conditions, "; "), strings.Join(r.Exemptions, "; "),
		})
	}
	addSheet(f, "Rates", rateRows)

	bracketRows := [][]any{{"Lower Bound", "Upper Bound", "Rate", "Fixed Amount"}}
	for _, br := range m.Brackets {
		bracketRows = append(bracketRows, []any{
			br.LowerBound, floatOrBlank(br.UpperBound), br.Rate, floatOrBlank(br.FixedAmount),
		})
	}
	addSheet(f, "Brackets", bracketRows)

	thresholdRows := [][]any{{"Name", "Amount", "Currency", "Purpose"}}
	for _, t := range m.Thresholds {
		thresholdRows = append(thresholdRows, []any{t.Name, t.Amount, t.Currency, t.Purpose})
	}
	addSheet(f, "Thresholds", thresholdRows)

	deadlineRows := [][]any{{"Name", "Frequency", "Day of Period", "Fixed Date", "Description"}}
	for _, d := range m.Deadlines {
		day := any("")
		if d.DayOfPeriod != nil {
			day = *d.DayOfPeriod
		}
		deadlineRows = append(deadlineRows, []any{d.Name, d.Frequency, day, d.FixedDate, d.Description})
	}
	addSheet(f, "Deadlines", deadlineRows)

	ruleRows := [][]any{{"ID", "Name", "Effect", "Tax Type", "Rate", "Conditions", "Source"}}
	for _, r := range m.Rules {
		ruleRows = append(ruleRows, []any{
			r.ID, r.Name, r.Effect, r.TaxType, floatOrBlank(r.Rate),
			strings.Join(r.Conditions, "; "), r.SourceReference,
		})
	}
	addSheet(f, "Rules", ruleRows)

	if len(m.Warnings) > 0 {
		warnRows := [][]any{{"Warning"}}
		for _, w := range m.Warnings {
			warnRows = append(warnRows, []any{w})
		}
		addSheet(f, "Warnings", warnRows)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return Artifact{}, fmt.Errorf("write workbook: %w", err)
	}
	return Artifact{
		Name:        fmt.Sprintf("%s_tax_review.xlsx", strings.ToLower(m.Country)),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     buf.Bytes(),
	}, nil
}

func addSheet(f *excelize.File, name string, rows [][]any) {
	_, _ = f.NewSheet(name)
	writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) {
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(sheet, cell, &row)
	}
}

func floatOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
