// Package render turns an immutable CanonicalTaxModel into machine-consumable
// artifacts. Every renderer is a pure function of the model: rendering the
// same model twice yields byte-identical output.
package render

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/taxatlas/taxatlas/internal/model"
)

// Kind identifies an artifact family.
type Kind string

const (
	KindJSONConfig   Kind = "json_config"
	KindSQLMigration Kind = "sql_migration"
	KindPolicyDSL    Kind = "policy_dsl"
	KindCode         Kind = "generated_code"
	KindReport       Kind = "review_workbook"
)

// Artifact is one rendered output.
type Artifact struct {
	Kind        Kind
	Name        string
	ContentType string
	Content     []byte
	Warnings    []string
}

// Renderer produces one artifact kind from a model.
type Renderer interface {
	Kind() Kind
	Render(m *model.CanonicalTaxModel) (Artifact, error)
}

// Safe runs a renderer and degrades any failure (error or panic) into a
// minimal placeholder artifact plus a warning, so one broken renderer never
// sinks the request.
func Safe(r Renderer, m *model.CanonicalTaxModel, logger *slog.Logger) (art Artifact) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("render.panic", "kind", string(r.Kind()), "panic", rec)
			art = minimalArtifact(r.Kind(), m, fmt.Sprintf("renderer panicked: %v", rec))
		}
	}()

	art, err := r.Render(m)
	if err != nil {
		logger.Warn("render.failed", "kind", string(r.Kind()), "err", err)
		return minimalArtifact(r.Kind(), m, fmt.Sprintf("render failed: %v", err))
	}
	art.Kind = r.Kind()
	return art
}

// minimalArtifact carries just enough to identify what failed and for which
// jurisdiction, so downstream consumers see a well-formed document.
func minimalArtifact(kind Kind, m *model.CanonicalTaxModel, reason string) Artifact {
	body, _ := json.MarshalIndent(map[string]any{
		"artifact": string(kind),
		"country":  m.Country,
		"status":   "degraded",
		"reason":   reason,
	}, "", "  ")
	return Artifact{
		Kind:        kind,
		Name:        fmt.Sprintf("%s.degraded.json", kind),
		ContentType: "application/json",
		Content:     append(body, '\n'),
		Warnings:    []string{fmt.Sprintf("%s artifact degraded: %s", kind, reason)},
	}
}
