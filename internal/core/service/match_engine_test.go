package service

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/facegate/facegate/internal/core/domain"
)

func tpl(email string, samples ...float32) domain.Template {
	return domain.Template{Email: email, Vector: domain.FeatureVector(samples)}
}

func findMatch(t *testing.T, src *stubSource, probe domain.FeatureVector, threshold float64) domain.MatchResult {
	t.Helper()
	res, err := NewMatchEngine(src, zerolog.Nop()).FindMatch(context.Background(), probe, threshold)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	return res
}

func TestEuclideanDistance(t *testing.T) {
	d, ok := EuclideanDistance(domain.FeatureVector{0, 0}, domain.FeatureVector{3, 4})
	if !ok || d != 5 {
		t.Fatalf("expected 5, got %v (ok=%v)", d, ok)
	}
	if _, ok := EuclideanDistance(domain.FeatureVector{1}, domain.FeatureVector{1, 2}); ok {
		t.Fatalf("expected length mismatch to be reported")
	}
}

func TestMatchEngine_EmptyStore(t *testing.T) {
	res := findMatch(t, &stubSource{}, domain.FeatureVector{1, 2}, 100)
	if res.Matched || res.Compared != 0 || res.Distance != -1 {
		t.Fatalf("expected empty no-match, got %+v", res)
	}
}

func TestMatchEngine_UsesGlobalMinimum(t *testing.T) {
	src := &stubSource{templates: []domain.Template{
		tpl("first-under@x.com", 8, 0), // distance 8, under threshold but not best
		tpl("best@x.com", 1, 0),        // distance 1
		tpl("far@x.com", 50, 0),
	}}

	res := findMatch(t, src, domain.FeatureVector{0, 0}, 10)
	if !res.Matched || res.Email != "best@x.com" || res.Distance != 1 {
		t.Fatalf("expected best@x.com at 1, got %+v", res)
	}
	if res.Compared != 3 || res.Ambiguous {
		t.Fatalf("unexpected scan metadata: %+v", res)
	}
}

func TestMatchEngine_ThresholdIsStrict(t *testing.T) {
	src := &stubSource{templates: []domain.Template{tpl("a@x.com", 3, 4)}}

	res := findMatch(t, src, domain.FeatureVector{0, 0}, 5)
	if res.Matched {
		t.Fatalf("distance equal to threshold must not match: %+v", res)
	}
	if res.Distance != 5 || res.Email != "" {
		t.Fatalf("no-match should report distance but no email: %+v", res)
	}
}

func TestMatchEngine_ThresholdMonotonic(t *testing.T) {
	src := &stubSource{templates: []domain.Template{
		tpl("a@x.com", 10, 10),
		tpl("b@x.com", 2, 1),
		tpl("c@x.com", 0, 7),
	}}
	probe := domain.FeatureVector{1, 1}

	var winner string
	matchedAt := -1.0
	for _, threshold := range []float64{0.5, 1, 1.01, 2, 5, 100, 1e9} {
		res := findMatch(t, src, probe, threshold)
		if !res.Matched {
			if matchedAt >= 0 {
				t.Fatalf("threshold %v rejected after %v matched", threshold, matchedAt)
			}
			continue
		}
		if matchedAt < 0 {
			matchedAt, winner = threshold, res.Email
		}
		if res.Email != winner {
			t.Fatalf("winner changed from %s to %s at threshold %v", winner, res.Email, threshold)
		}
	}
	if winner != "b@x.com" {
		t.Fatalf("expected b@x.com to win, got %q", winner)
	}
}

func TestMatchEngine_TieBreaksOnSmallestEmail(t *testing.T) {
	orders := [][]domain.Template{
		{tpl("zed@x.com", 1, 0), tpl("amy@x.com", 0, 1), tpl("far@x.com", 9, 9)},
		{tpl("far@x.com", 9, 9), tpl("amy@x.com", 0, 1), tpl("zed@x.com", 1, 0)},
	}

	for i, templates := range orders {
		res := findMatch(t, &stubSource{templates: templates}, domain.FeatureVector{0, 0}, 10)
		if !res.Matched || res.Email != "amy@x.com" {
			t.Fatalf("order %d: expected amy@x.com, got %+v", i, res)
		}
		if !res.Ambiguous {
			t.Fatalf("order %d: expected tie to be flagged", i)
		}
	}
}

func TestMatchEngine_SkipsDimensionMismatch(t *testing.T) {
	src := &stubSource{templates: []domain.Template{
		tpl("short@x.com", 0),
		tpl("ok@x.com", 0, 2),
	}}

	res := findMatch(t, src, domain.FeatureVector{0, 0}, 10)
	if !res.Matched || res.Email != "ok@x.com" || res.Compared != 1 {
		t.Fatalf("expected ok@x.com over 1 candidate, got %+v", res)
	}
}

func TestMatchEngine_AllCandidatesSkipped(t *testing.T) {
	src := &stubSource{templates: []domain.Template{tpl("short@x.com", 0), tpl("long@x.com", 0, 0, 0)}}

	res := findMatch(t, src, domain.FeatureVector{0, 0}, 1e9)
	if res.Matched || res.Compared != 0 {
		t.Fatalf("expected no-match with nothing compared, got %+v", res)
	}
}

func TestMatchEngine_SourceError(t *testing.T) {
	src := &stubSource{templates: []domain.Template{tpl("a@x.com", 0, 0)}, err: errBoom}

	_, err := NewMatchEngine(src, zerolog.Nop()).FindMatch(context.Background(), domain.FeatureVector{0, 0}, 10)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestMatchEngine_OverTemplateStoreIsolatesCorruption(t *testing.T) {
	f := mustFormat(1)
	repo := newStubAccountRepo()
	near, _ := f.Encode(uniformVector(f, 12))
	far, _ := f.Encode(uniformVector(f, 200))
	repo.seed("near@x.com", near, 1)
	repo.seed("corrupt@x.com", near[:100], 1)
	repo.seed("far@x.com", far, 1)

	engine := NewMatchEngine(NewTemplateStore(repo, f, zerolog.Nop()), zerolog.Nop())
	res, err := engine.FindMatch(context.Background(), uniformVector(f, 10), f.Threshold)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	// |12-10| * 100 = 200
	if !res.Matched || res.Email != "near@x.com" || res.Distance != 200 || res.Compared != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// nanBlob is a full-length float32 blob whose every sample is NaN.
func nanBlob(f domain.TemplateFormat) []byte {
	blob := make([]byte, f.BlobLen())
	bits := math.Float32bits(float32(math.NaN()))
	for i := 0; i < len(blob); i += 4 {
		binary.LittleEndian.PutUint32(blob[i:], bits)
	}
	return blob
}

func TestMatchEngine_NaNTemplateDoesNotPoisonScan(t *testing.T) {
	f := mustFormat(2)
	repo := newStubAccountRepo()
	alice, _ := f.Encode(uniformVector(f, 10))
	repo.seed("corrupt@x.com", nanBlob(f), 2)
	repo.seed("alice@x.com", alice, 2)

	engine := NewMatchEngine(NewTemplateStore(repo, f, zerolog.Nop()), zerolog.Nop())
	res, err := engine.FindMatch(context.Background(), uniformVector(f, 10), f.Threshold)
	if err != nil {
		t.Fatalf("FindMatch: %v", err)
	}
	if !res.Matched || res.Email != "alice@x.com" || res.Distance != 0 || res.Compared != 1 {
		t.Fatalf("expected exact match on alice@x.com, got %+v", res)
	}
}

func TestMatchEngine_SkipsNaNDistance(t *testing.T) {
	nan := float32(math.NaN())
	src := &stubSource{templates: []domain.Template{
		tpl("nan@x.com", nan, nan),
		tpl("ok@x.com", 0, 1),
	}}

	res := findMatch(t, src, domain.FeatureVector{0, 0}, 10)
	if !res.Matched || res.Email != "ok@x.com" || res.Distance != 1 || res.Compared != 1 {
		t.Fatalf("expected ok@x.com at distance 1, got %+v", res)
	}
}
