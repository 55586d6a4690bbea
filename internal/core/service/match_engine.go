package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
	"github.com/facegate/facegate/internal/pkg/metrics"
)

// MatchEngine finds the closest enrolled template by a linear scan.
type MatchEngine struct {
	source ports.TemplateSource
	log    zerolog.Logger
}

// NewMatchEngine returns a MatchEngine scanning source on every call.
func NewMatchEngine(source ports.TemplateSource, log zerolog.Logger) *MatchEngine {
	return &MatchEngine{source: source, log: log}
}

// FindMatch compares probe against every template and accepts the global
// minimum when it is strictly below threshold. Equal minima resolve to the
// lexicographically smallest email and mark the result Ambiguous.
func (m *MatchEngine) FindMatch(ctx context.Context, probe domain.FeatureVector, threshold float64) (domain.MatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.FaceMatchScanDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		best      float64
		bestEmail string
		ambiguous bool
		compared  int
	)

	for tpl, err := range m.source.AllTemplates(ctx) {
		if err != nil {
			return domain.MatchResult{}, fmt.Errorf("find match: %w", err)
		}

		d, ok := EuclideanDistance(probe, tpl.Vector)
		if !ok {
			m.log.Warn().
				Str("email", tpl.Email).
				Int("probe_len", len(probe)).
				Int("template_len", len(tpl.Vector)).
				Msg("template dimension differs from probe, skipped")
			continue
		}
		if math.IsNaN(d) {
			m.log.Warn().Str("email", tpl.Email).Msg("template distance is NaN, skipped")
			continue
		}
		compared++

		switch {
		case compared == 1 || d < best:
			best, bestEmail, ambiguous = d, tpl.Email, false
		case d == best:
			ambiguous = true
			if tpl.Email < bestEmail {
				bestEmail = tpl.Email
			}
		}
	}

	if compared == 0 {
		return domain.NoMatch(-1, 0), nil
	}
	if best < threshold {
		return domain.MatchResult{
			Matched:   true,
			Email:     bestEmail,
			Distance:  best,
			Ambiguous: ambiguous,
			Compared:  compared,
		}, nil
	}
	return domain.NoMatch(best, compared), nil
}

// EuclideanDistance returns the L2 distance between a and b. ok is false when
// the vectors have different lengths.
func EuclideanDistance(a, b domain.FeatureVector) (dist float64, ok bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), true
}
