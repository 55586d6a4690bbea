package ports

import (
	"context"
	"iter"

	"github.com/facegate/facegate/internal/core/domain"
)

// TemplateSource is what the match engine scans. Any backend that can
// enumerate decoded templates can be substituted here.
type TemplateSource interface {
	AllTemplates(ctx context.Context) iter.Seq2[domain.Template, error]
}

// TemplateStore attaches and enumerates face templates.
type TemplateStore interface {
	TemplateSource
	Attach(ctx context.Context, email string, vector domain.FeatureVector) error
}

// Matcher finds the enrolled account closest to a probe vector.
type Matcher interface {
	FindMatch(ctx context.Context, probe domain.FeatureVector, threshold float64) (domain.MatchResult, error)
}
