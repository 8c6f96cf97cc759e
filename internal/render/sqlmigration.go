package render

import (
	"fmt"
	"strings"

	"github.com/taxatlas/taxatlas/internal/model"
)

// Migration is a reversible pair of SQL scripts. Down undoes exactly what Up
// created: applying Up then Down leaves the database with no rows for the
// migration's country and drops the tables it created.
type Migration struct {
	Name string
	Up   string
	Down string
}

// SQLMigration renders the model as an idempotent SQL migration targeting
// the tax_rates, tax_brackets, tax_thresholds and tax_deadlines tables.
// The statements stay within the SQL subset shared by PostgreSQL and SQLite
// so the same script drives both the dry-run verifier and a live database.
type SQLMigration struct{}

func (SQLMigration) Kind() Kind { return KindSQLMigration }

func (SQLMigration) Render(m *model.CanonicalTaxModel) (Artifact, error) {
	mig := BuildMigration(m)
	var b strings.Builder
	fmt.Fprintf(&b, "-- migration: %s\n\n", mig.Name)
	b.WriteString("-- up\n")
	b.WriteString(mig.Up)
	b.WriteString("\n-- down\n")
	b.WriteString(mig.Down)
	return Artifact{
		Name:        mig.Name + ".sql",
		ContentType: "application/sql",
		Content:     []byte(b.String()),
	}, nil
}

// BuildMigration assembles the up and down scripts. The name embeds the
// model's content hash, so re-running the pipeline on the same document
// yields the same migration identity.
func BuildMigration(m *model.CanonicalTaxModel) Migration {
	name := fmt.Sprintf("%s_tax_rules_%s", strings.ToLower(m.Country), m.ContentHash())
	country := sqlQuote(m.Country)

	var up strings.Builder
	up.WriteString(`CREATE TABLE IF NOT EXISTS tax_rates (
    country TEXT NOT NULL,
    name TEXT NOT NULL,
    rate NUMERIC NOT NULL,
    description TEXT,
    PRIMARY KEY (country, name)
);

CREATE TABLE IF NOT EXISTS tax_brackets (
    country TEXT NOT NULL,
    position INTEGER NOT NULL,
    lower_bound NUMERIC NOT NULL,
    upper_bound NUMERIC,
    rate NUMERIC NOT NULL,
    fixed_amount NUMERIC,
    PRIMARY KEY (country, position)
);

CREATE TABLE IF NOT EXISTS tax_thresholds (
    country TEXT NOT NULL,
    name TEXT NOT NULL,
    amount NUMERIC NOT NULL,
    currency TEXT NOT NULL,
    purpose TEXT,
    PRIMARY KEY (country, name)
);

CREATE TABLE IF NOT EXISTS tax_deadlines (
    country TEXT NOT NULL,
    name TEXT NOT NULL,
    frequency TEXT NOT NULL,
    day_of_period INTEGER,
    fixed_date TEXT,
    description TEXT,
    PRIMARY KEY (country, name)
);

`)

	for _, r := range m.Rates {
		fmt.Fprintf(&up,
			"INSERT INTO tax_rates (country, name, rate, description) VALUES (%s, %s, %s, %s);\n",
			country, sqlQuote(r.Name), sqlNumber(r.Rate), sqlQuoteOrNull(r.Description))
	}
	for i, br := range m.Brackets {
		fmt.Fprintf(&up,
			"INSERT INTO tax_brackets (country, position, lower_bound, upper_bound, rate, fixed_amount) VALUES (%s, %d, %s, %s, %s, %s);\n",
			country, i+1, sqlNumber(br.LowerBound), sqlNumberPtr(br.UpperBound), sqlNumber(br.Rate), sqlNumberPtr(br.FixedAmount))
	}
	for _, t := range m.Thresholds {
		fmt.Fprintf(&up,
			"INSERT INTO tax_thresholds (country, name, amount, currency, purpose) VALUES (%s, %s, %s, %s, %s);\n",
			country, sqlQuote(t.Name), sqlRawNumber(t.Amount), sqlQuote(t.Currency), sqlQuoteOrNull(t.Purpose))
	}
	for _, d := range m.Deadlines {
		fmt.Fprintf(&up,
			"INSERT INTO tax_deadlines (country, name, frequency, day_of_period, fixed_date, description) VALUES (%s, %s, %s, %s, %s, %s);\n",
			country, sqlQuote(d.Name), sqlQuote(d.Frequency), sqlIntPtr(d.DayOfPeriod), sqlQuoteOrNull(d.FixedDate), sqlQuoteOrNull(d.Description))
	}

	var down strings.Builder
	fmt.Fprintf(&down, "DELETE FROM tax_deadlines WHERE country = %s;\n", country)
	fmt.Fprintf(&down, "DELETE FROM tax_thresholds WHERE country = %s;\n", country)
	fmt.Fprintf(&down, "DELETE FROM tax_brackets WHERE country = %s;\n", country)
	fmt.Fprintf(&down, "DELETE FROM tax_rates WHERE country = %s;\n", country)
	down.WriteString(`DROP TABLE IF EXISTS tax_deadlines;
DROP TABLE IF EXISTS tax_thresholds;
DROP TABLE IF EXISTS tax_brackets;
DROP TABLE IF EXISTS tax_rates;
`)

	return Migration{Name: name, Up: up.String(), Down: down.String()}
}

// SplitStatements splits a script into executable statements, respecting
// single-quoted literals. Good enough for the scripts BuildMigration emits.
func SplitStatements(script string) []string {
	var stmts []string
	var current strings.Builder
	inString := false
	for _, r := range script {
		current.WriteRune(r)
		switch {
		case r == '\'':
			inString = !inString
		case r == ';' && !inString:
			s := strings.TrimSpace(current.String())
			if s != ";" && s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlQuoteOrNull(s string) string {
	if s == "" {
		return "NULL"
	}
	return sqlQuote(s)
}

func sqlNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}

func sqlNumberPtr(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return sqlNumber(*v)
}

func sqlIntPtr(v *int) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%d", *v)
}

// sqlRawNumber passes through threshold amounts, which are kept as decimal
// strings in the model; anything non-numeric falls back to a quoted literal.
func sqlRawNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	for i, r := range s {
		if r >= '0' && r <= '9' || r == '.' || (i == 0 && r == '-') {
			continue
		}
		return sqlQuote(s)
	}
	return s
}
