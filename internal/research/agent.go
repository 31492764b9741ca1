// Package research fills in the schema fields of an enriched record.
// Two LLM passes bracket an optional web search: first extract what the
// item name alone gives away, then search for the rest and extract from
// the snippets. Fields that stay unresolved after both passes are left
// empty rather than failing the row.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/internal/resilience"
	"github.com/promdata/mtr-cli/pkg/anthropic"
	"github.com/promdata/mtr-cli/pkg/websearch"
)

// Agent researches technical characteristics for a categorized row.
type Agent struct {
	ai            anthropic.Client
	search        websearch.Client
	modelID       string
	retry         resilience.RetryConfig
	minConfidence float64
}

// New builds a research Agent. ai may be nil to skip extraction
// entirely; search may be nil to run name-only extraction without the
// web pass.
func New(ai anthropic.Client, search websearch.Client, modelID string, retry resilience.RetryConfig, minConfidence float64) *Agent {
	return &Agent{
		ai:            ai,
		search:        search,
		modelID:       modelID,
		retry:         retry,
		minConfidence: minConfidence,
	}
}

// Enrich populates rec.Fields in place and returns the tokens spent.
// Every external call retries transient failures up to the configured
// ceiling; a call that exhausts its attempts leaves its fields
// unresolved and Enrich still returns nil.
func (a *Agent) Enrich(ctx context.Context, rec *model.EnrichedRecord) (anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage
	if rec.Category == nil || len(rec.Category.Schema) == 0 {
		return usage, nil
	}
	if a.ai == nil {
		return usage, nil
	}

	desc := rec.Raw.Description()
	log := zap.L().With(zap.Int("row", rec.Raw.Index), zap.String("category", rec.Category.Name))

	// Pass 1: the name itself. Russian MTR names pack a lot of the
	// schema into the designation string.
	u, err := a.extractFromName(ctx, rec, desc)
	usage.Add(u)
	if err != nil {
		log.Warn("research: name extraction exhausted retries", zap.Error(err))
	}

	missing := rec.MissingFields(a.minConfidence)
	if len(missing) == 0 || a.search == nil {
		return usage, nil
	}

	// Pass 2: web search plus extraction from snippets.
	snippets, err := a.searchSnippets(ctx, desc, missing)
	if err != nil {
		log.Warn("research: web search exhausted retries", zap.Error(err))
		return usage, nil
	}
	if snippets == "" {
		return usage, nil
	}

	u, err = a.extractFromSnippets(ctx, rec, desc, missing, snippets)
	usage.Add(u)
	if err != nil {
		log.Warn("research: snippet extraction exhausted retries", zap.Error(err))
	}
	return usage, nil
}

const extractSystem = `You extract technical characteristics of industrial products (MTR line items). Respond only with a valid JSON object mapping each requested field to {"value": "<string>", "confidence": <0.0-1.0>}. Omit fields you cannot determine. Never invent values.`

func (a *Agent) extractFromName(ctx context.Context, rec *model.EnrichedRecord, desc string) (anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf("Item name: %s\nCategory: %s\nFields: %s\n\nExtract only what the name itself states.",
		desc, rec.Category.Name, strings.Join(rec.Category.Schema, ", "))
	return a.extract(ctx, rec, prompt, model.SourceName)
}

func (a *Agent) extractFromSnippets(ctx context.Context, rec *model.EnrichedRecord, desc string, missing []string, snippets string) (anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf("Item name: %s\nCategory: %s\nFields: %s\n\nSearch results:\n%s\n\nExtract the listed fields from the search results.",
		desc, rec.Category.Name, strings.Join(missing, ", "), snippets)
	return a.extract(ctx, rec, prompt, model.SourceWeb)
}

// extract runs one retried LLM call and merges parsed fields into rec.
func (a *Agent) extract(ctx context.Context, rec *model.EnrichedRecord, prompt, source string) (anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage
	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.modelID,
			MaxTokens: 1024,
			System:    extractSystem,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return usage, eris.Wrap(err, "research: extraction call")
	}
	usage.Add(resp.Usage)

	fields, err := parseFields(resp.Text())
	if err != nil {
		zap.L().Warn("research: unparseable extraction answer",
			zap.Int("row", rec.Raw.Index), zap.Error(err))
		return usage, nil
	}
	for name, fv := range fields {
		fv.Source = source
		rec.SetField(name, fv)
	}
	return usage, nil
}

func (a *Agent) searchSnippets(ctx context.Context, desc string, missing []string) (string, error) {
	query := desc + " характеристики " + strings.Join(missing, " ")
	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*websearch.SearchResponse, error) {
		return a.search.Search(ctx, query, websearch.WithMaxResults(5), websearch.WithLanguage("ru"))
	})
	if err != nil {
		return "", eris.Wrap(err, "research: web search")
	}

	var b strings.Builder
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Snippet)
	}
	return b.String(), nil
}

// parseFields decodes {"field": {"value": "...", "confidence": 0.x}}.
func parseFields(text string) (map[string]model.FieldValue, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "{"); i > 0 {
		text = text[i:]
	}
	if i := strings.LastIndex(text, "}"); i >= 0 {
		text = text[:i+1]
	}

	var raw map[string]struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, eris.Wrap(err, "research: decode fields")
	}

	out := make(map[string]model.FieldValue, len(raw))
	for name, v := range raw {
		if strings.TrimSpace(v.Value) == "" {
			continue
		}
		out[name] = model.FieldValue{Value: v.Value, Confidence: v.Confidence}
	}
	return out, nil
}
