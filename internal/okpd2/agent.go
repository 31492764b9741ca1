// Package okpd2 assigns an OKPD2 classifier code to an enriched record.
// Candidates come from the public registry restricted to the category's
// prefix subtree; the agent picks the deepest candidate consistent with
// the researched attributes and falls back to the prefix itself when
// nothing deeper fits.
package okpd2

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/fingerprint"
	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/internal/resilience"
	"github.com/promdata/mtr-cli/pkg/okpd2reg"
)

// Agent resolves OKPD2 codes through the registry client.
type Agent struct {
	registry okpd2reg.Client
	retry    resilience.RetryConfig
}

// New builds a classification Agent.
func New(registry okpd2reg.Client, retry resilience.RetryConfig) *Agent {
	return &Agent{registry: registry, retry: retry}
}

// Classify returns the OKPD2 classification for an enriched record.
// Registry exhaustion or an empty answer degrades to the category
// prefix, never to an error, as long as the category carries a prefix.
func (a *Agent) Classify(ctx context.Context, rec *model.EnrichedRecord) (model.ClassificationResult, error) {
	cat := rec.Category
	if cat == nil || cat.OKPD2Prefix == "" {
		return model.ClassificationResult{}, eris.New("okpd2: record has no classifiable category")
	}

	fallback := model.ClassificationResult{
		Code:               cat.OKPD2Prefix,
		Name:               cat.Name,
		Level:              model.CodeLevel(cat.OKPD2Prefix),
		Confidence:         0.5,
		MinimumSpecificity: true,
	}

	candidates, err := a.lookup(ctx, rec)
	if err != nil {
		zap.L().Warn("okpd2: registry lookup exhausted retries",
			zap.Int("row", rec.Raw.Index), zap.Error(err))
		return fallback, nil
	}

	prefixLevel := model.CodeLevel(cat.OKPD2Prefix)
	attrs := attributeTokens(rec)

	var (
		best        *okpd2reg.Candidate
		bestOverlap int
		finerExists bool
	)
	for i := range candidates {
		c := &candidates[i]
		if !strings.HasPrefix(c.Code, cat.OKPD2Prefix) || !model.IsValidOKPD2(c.Code) {
			continue
		}
		level := model.CodeLevel(c.Code)
		if level <= prefixLevel {
			continue
		}
		finerExists = true

		// A deeper candidate must share at least one token with the
		// researched attributes, otherwise it asserts something the
		// research never established.
		overlap := tokenOverlap(c.Name, attrs)
		if overlap == 0 {
			continue
		}
		if best == nil || deeper(c, best) || (sameDepth(c, best) && betterMatch(c, overlap, best, bestOverlap)) {
			best, bestOverlap = c, overlap
		}
	}

	if best == nil {
		fallback.FinerExists = finerExists
		return fallback, nil
	}

	conf := 0.75
	if bestOverlap >= 2 {
		conf = 0.9
	}
	return model.ClassificationResult{
		Code:       best.Code,
		Name:       best.Name,
		Level:      model.CodeLevel(best.Code),
		Confidence: conf,
	}, nil
}

func (a *Agent) lookup(ctx context.Context, rec *model.EnrichedRecord) ([]okpd2reg.Candidate, error) {
	query := buildQuery(rec)
	return resilience.DoVal(ctx, a.retry, func(ctx context.Context) ([]okpd2reg.Candidate, error) {
		return a.registry.Lookup(ctx, query, rec.Category.OKPD2Prefix)
	})
}

// buildQuery combines the description with the resolved field values,
// which narrows the registry answer to the researched variant.
func buildQuery(rec *model.EnrichedRecord) string {
	parts := []string{rec.Raw.Description()}
	for _, f := range rec.Category.Schema {
		if fv, ok := rec.Resolved(f); ok && fv.Value != "" {
			parts = append(parts, fv.Value)
		}
	}
	return strings.Join(parts, " ")
}

// attributeTokens is the normalized token set of everything known about
// the row: raw description plus resolved field values.
func attributeTokens(rec *model.EnrichedRecord) map[string]struct{} {
	tokens := make(map[string]struct{})
	add := func(s string) {
		for _, w := range strings.Fields(fingerprint.Normalize(s)) {
			tokens[w] = struct{}{}
		}
	}
	add(rec.Raw.Description())
	for _, fv := range rec.Fields {
		add(fv.Value)
	}
	return tokens
}

func tokenOverlap(name string, attrs map[string]struct{}) int {
	n := 0
	for _, w := range strings.Fields(fingerprint.Normalize(name)) {
		if _, ok := attrs[w]; ok {
			n++
		}
	}
	return n
}

func deeper(a, b *okpd2reg.Candidate) bool {
	return model.CodeLevel(a.Code) > model.CodeLevel(b.Code)
}

func sameDepth(a, b *okpd2reg.Candidate) bool {
	return model.CodeLevel(a.Code) == model.CodeLevel(b.Code)
}

// betterMatch favors higher attribute overlap and breaks remaining ties
// by code order so a shuffled registry answer cannot change the result.
func betterMatch(c *okpd2reg.Candidate, overlap int, best *okpd2reg.Candidate, bestOverlap int) bool {
	if overlap != bestOverlap {
		return overlap > bestOverlap
	}
	return c.Code < best.Code
}
