// Package detect assigns a product category to a raw row. The first pass
// is deterministic keyword matching over normalized, stemmed text and
// never touches the network; only rows no keyword matches fall back to a
// constrained LLM call.
package detect

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kljensen/snowball"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/fingerprint"
	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/pkg/anthropic"
)

// Result is a detection outcome.
type Result struct {
	Category   *model.Category
	Confidence float64
	UsedLLM    bool
	Usage      anthropic.TokenUsage
}

// Detector classifies rows against the registered category table.
type Detector struct {
	registry  *model.CategoryRegistry
	ai        anthropic.Client
	modelID   string
	proposals *ProposalTracker

	// stemmed keyword sets, precomputed per category in registration order
	keywords [][]string
}

// New builds a Detector. ai may be nil, in which case unmatched rows go
// straight to UNKNOWN without a fallback call.
func New(registry *model.CategoryRegistry, ai anthropic.Client, modelID string) *Detector {
	d := &Detector{
		registry:  registry,
		ai:        ai,
		modelID:   modelID,
		proposals: NewProposalTracker(3),
	}
	for _, cat := range registry.All() {
		stems := make([]string, len(cat.Keywords))
		for i, kw := range cat.Keywords {
			stems[i] = stemPhrase(fingerprint.Normalize(kw))
		}
		d.keywords = append(d.keywords, stems)
	}
	return d
}

// Proposals returns the dynamic category proposals accumulated so far.
func (d *Detector) Proposals() []Proposal {
	return d.proposals.Snapshot()
}

// Detect returns the category and confidence for a raw row. Keyword
// matches are fully deterministic: same description, same answer, no
// external call. Ties go to the longest matched keyword, then to
// category registration order.
func (d *Detector) Detect(ctx context.Context, rec model.RawRecord) (Result, error) {
	desc := rec.Description()
	if desc == "" {
		return Result{Category: d.registry.Unknown()}, nil
	}

	stemmedDesc := stemPhrase(fingerprint.Normalize(desc))

	bestIdx := -1
	bestLen := 0
	bestCount := 0
	cats := d.registry.All()
	for i := range cats {
		longest, count := 0, 0
		for _, kw := range d.keywords[i] {
			if kw == "" {
				continue
			}
			if strings.Contains(stemmedDesc, kw) {
				count++
				if len(kw) > longest {
					longest = len(kw)
				}
			}
		}
		if count == 0 {
			continue
		}
		// Longest matched keyword wins; registration order breaks ties.
		if longest > bestLen {
			bestIdx, bestLen, bestCount = i, longest, count
		}
	}

	if bestIdx >= 0 {
		conf := 0.3 * float64(bestCount)
		if conf > 1.0 {
			conf = 1.0
		}
		return Result{Category: &cats[bestIdx], Confidence: conf}, nil
	}

	return d.detectLLM(ctx, desc)
}

const fallbackSystem = `You classify industrial procurement line items. Respond with a valid JSON object: {"category": "<name>", "confidence": <0.0-1.0>}. The category must be one of the provided names, or UNKNOWN.`

// detectLLM asks the model to pick a registered category. Any answer
// that is not a registered name is treated as UNKNOWN with confidence 0.
func (d *Detector) detectLLM(ctx context.Context, desc string) (Result, error) {
	if d.ai == nil {
		d.proposals.Observe(desc)
		return Result{Category: d.registry.Unknown()}, nil
	}

	prompt := "Categories: " + strings.Join(append(d.registry.Names(), model.CategoryUnknown), ", ") +
		"\n\nLine item: " + desc

	resp, err := d.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.modelID,
		MaxTokens: 128,
		System:    fallbackSystem,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		// Detection is best-effort: a failed fallback is an UNKNOWN row,
		// not a failed row.
		zap.L().Warn("detect: llm fallback failed", zap.Error(err))
		d.proposals.Observe(desc)
		return Result{Category: d.registry.Unknown(), UsedLLM: true}, nil
	}

	res := Result{Category: d.registry.Unknown(), UsedLLM: true, Usage: resp.Usage}

	var parsed struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &parsed); err != nil {
		zap.L().Warn("detect: unparseable fallback answer", zap.String("text", resp.Text()))
		d.proposals.Observe(desc)
		return res, nil
	}

	name := strings.TrimSpace(parsed.Category)
	if !d.registry.IsRegistered(name) {
		d.proposals.Observe(desc)
		return res, nil
	}
	if name == model.CategoryUnknown {
		d.proposals.Observe(desc)
		return res, nil
	}

	res.Category = d.registry.ByName(name)
	res.Confidence = parsed.Confidence
	return res, nil
}

// stemPhrase stems each whitespace-separated word with the Russian
// snowball stemmer. Words the stemmer cannot handle pass through as-is,
// so Latin model numbers still match literally.
func stemPhrase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if stemmed, err := snowball.Stem(w, "russian", false); err == nil && stemmed != "" {
			words[i] = stemmed
		}
	}
	return strings.Join(words, " ")
}

// cleanJSON strips markdown code fences the model sometimes wraps
// around JSON answers.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
