package service

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
	"github.com/facegate/facegate/internal/pkg/metrics"
)

// TemplateStore attaches face templates to accounts and reads them back in
// the active template format.
type TemplateStore struct {
	repo   ports.AccountRepository
	format domain.TemplateFormat
	log    zerolog.Logger
}

// NewTemplateStore returns a TemplateStore bound to a single template format.
func NewTemplateStore(repo ports.AccountRepository, format domain.TemplateFormat, log zerolog.Logger) *TemplateStore {
	return &TemplateStore{repo: repo, format: format, log: log}
}

// Attach encodes vector and stores it on the account, replacing any previous
// template.
func (s *TemplateStore) Attach(ctx context.Context, email string, vector domain.FeatureVector) error {
	blob, err := s.format.Encode(vector)
	if err != nil {
		return fmt.Errorf("attach template: %w", err)
	}
	if err := s.repo.SetTemplate(ctx, email, blob, s.format.Version); err != nil {
		return fmt.Errorf("attach template: %w", err)
	}
	return nil
}

// AllTemplates lazily yields every decodable template. Corrupted or stale
// entries are logged and skipped; only a failing backing store ends the
// sequence with an error.
func (s *TemplateStore) AllTemplates(ctx context.Context) iter.Seq2[domain.Template, error] {
	return func(yield func(domain.Template, error) bool) {
		for stored, err := range s.repo.ScanTemplates(ctx) {
			if err != nil {
				yield(domain.Template{}, fmt.Errorf("scan templates: %w", err))
				return
			}

			vector, reason, err := s.decode(stored)
			if err != nil {
				s.logSkipped(stored, reason, err)
				continue
			}
			if !yield(domain.Template{Email: stored.Email, Vector: vector}, nil) {
				return
			}
		}
	}
}

// AuditReport summarises one full pass over the stored templates.
type AuditReport struct {
	Usable  int
	Skipped map[string][]string // reason -> account emails
}

// SkippedCount returns the number of templates excluded from matching.
func (r AuditReport) SkippedCount() int {
	n := 0
	for _, emails := range r.Skipped {
		n += len(emails)
	}
	return n
}

// Audit scans all templates and classifies them without matching.
func (s *TemplateStore) Audit(ctx context.Context) (AuditReport, error) {
	report := AuditReport{Skipped: make(map[string][]string)}
	for stored, err := range s.repo.ScanTemplates(ctx) {
		if err != nil {
			return report, fmt.Errorf("audit templates: %w", err)
		}
		if _, reason, err := s.decode(stored); err != nil {
			report.Skipped[reason] = append(report.Skipped[reason], stored.Email)
			continue
		}
		report.Usable++
	}
	return report, nil
}

func (s *TemplateStore) decode(stored domain.StoredTemplate) (domain.FeatureVector, string, error) {
	if stored.Err != nil {
		return nil, metrics.SkipCorrupt, fmt.Errorf("%w: %w", domain.ErrCorruptTemplate, stored.Err)
	}
	if stored.Version != s.format.Version {
		return nil, metrics.SkipVersion, fmt.Errorf("%w: stored version %d, active version %d",
			domain.ErrDimensionMismatch, stored.Version, s.format.Version)
	}
	vector, err := s.format.Decode(stored.Blob)
	if errors.Is(err, domain.ErrCorruptTemplate) {
		return nil, metrics.SkipCorrupt, err
	}
	if err != nil {
		return nil, metrics.SkipLength, err
	}
	return vector, "", nil
}

func (s *TemplateStore) logSkipped(stored domain.StoredTemplate, reason string, err error) {
	metrics.TemplatesSkippedTotal.WithLabelValues(reason).Inc()
	s.log.Warn().
		Err(err).
		Str("email", stored.Email).
		Str("reason", reason).
		Int("stored_bytes", len(stored.Blob)).
		Int("expected_bytes", s.format.BlobLen()).
		Int("stored_version", stored.Version).
		Msg("template skipped")
}
