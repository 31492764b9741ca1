// Package pipeline sequences the per-row stages (detect, cache lookup,
// research, classify, validate) and fans rows out across a bounded
// worker pool. One worker owns a row from dispatch to outcome; the
// cache and the rate limiter are the only shared components.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/promdata/mtr-cli/internal/cache"
	"github.com/promdata/mtr-cli/internal/detect"
	"github.com/promdata/mtr-cli/internal/fingerprint"
	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/internal/okpd2"
	"github.com/promdata/mtr-cli/internal/research"
	"github.com/promdata/mtr-cli/internal/resilience"
	"github.com/promdata/mtr-cli/internal/validate"
	"github.com/promdata/mtr-cli/pkg/anthropic"
	"github.com/promdata/mtr-cli/pkg/okpd2reg"
	"github.com/promdata/mtr-cli/pkg/websearch"
)

// Options configures one Pipeline.
type Options struct {
	Workers            int
	RequestsPerSecond  float64
	Burst              int
	Retry              resilience.RetryConfig
	MinFieldConfidence float64
	DetectModel        string
	ResearchModel      string
}

// BatchResult is the outcome of processing one row sequence: per-row
// outcomes in input order plus the aggregate counters.
type BatchResult struct {
	Outcomes  []model.RowOutcome  `json:"outcomes"`
	Stats     model.StatsSnapshot `json:"stats"`
	Proposals []detect.Proposal   `json:"proposals,omitempty"`
}

// Pipeline is the per-run orchestrator.
type Pipeline struct {
	opts Options

	detector  *detect.Detector
	research  *research.Agent
	classify  *okpd2.Agent
	validator *validate.Validator
	store     cache.Cache
	stats     *model.RunStatistics
}

// New wires a Pipeline. The rate limiter is created here and injected
// into every external client, so no call path can bypass it. Any of
// ai, search, registry may be nil; the corresponding stage degrades.
func New(opts Options, categories *model.CategoryRegistry, ai anthropic.Client, search websearch.Client, registry okpd2reg.Client, store cache.Cache) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if store == nil {
		store = cache.Nop{}
	}

	stats := model.NewRunStatistics()
	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	if opts.RequestsPerSecond <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	var limitedAI anthropic.Client
	if ai != nil {
		limitedAI = &meteredAI{inner: ai, limiter: limiter, stats: stats}
	}
	var limitedSearch websearch.Client
	if search != nil {
		limitedSearch = &meteredSearch{inner: search, limiter: limiter, stats: stats}
	}
	var limitedRegistry okpd2reg.Client
	if registry != nil {
		limitedRegistry = &meteredRegistry{inner: registry, limiter: limiter, stats: stats}
	}

	p := &Pipeline{
		opts:      opts,
		detector:  detect.New(categories, limitedAI, opts.DetectModel),
		validator: validate.New(opts.MinFieldConfidence),
		store:     store,
		stats:     stats,
	}
	p.research = research.New(limitedAI, limitedSearch, opts.ResearchModel, opts.Retry, opts.MinFieldConfidence)
	if limitedRegistry != nil {
		p.classify = okpd2.New(limitedRegistry, opts.Retry)
	}
	return p
}

// Stats returns the live counters for this pipeline.
func (p *Pipeline) Stats() *model.RunStatistics { return p.stats }

// ProcessRows runs the full pipeline over rows. Outcomes come back in
// input order regardless of worker completion order. Per-row failures
// never abort the batch; cancellation stops dispatch, lets in-flight
// rows drain, and counts the undispatched remainder as abandoned.
func (p *Pipeline) ProcessRows(ctx context.Context, rows []model.RawRecord) (*BatchResult, error) {
	outcomes := make([]model.RowOutcome, len(rows))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	dispatched := 0
	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		i := i
		dispatched++
		g.Go(func() error {
			outcomes[i] = p.processRow(ctx, rows[i])
			return nil
		})
	}
	_ = g.Wait()

	if abandoned := len(rows) - dispatched; abandoned > 0 {
		p.stats.RecordAbandoned(int64(abandoned))
		for i := dispatched; i < len(rows); i++ {
			outcomes[i] = model.RowOutcome{Index: rows[i].Index, Raw: rows[i], Status: model.StatusPending}
		}
		zap.L().Warn("pipeline: batch cancelled",
			zap.Int("dispatched", dispatched), zap.Int("abandoned", abandoned))
	}

	return &BatchResult{
		Outcomes:  outcomes,
		Stats:     p.stats.Snapshot(),
		Proposals: p.detector.Proposals(),
	}, ctx.Err()
}

// processRow runs one row to its terminal state. Nothing here returns
// an error to the pool: every failure mode maps onto a RowOutcome.
func (p *Pipeline) processRow(ctx context.Context, row model.RawRecord) (out model.RowOutcome) {
	start := time.Now()
	out = model.RowOutcome{Index: row.Index, Raw: row, Status: model.StatusPending}
	defer func() {
		out.Elapsed = time.Since(start)
		p.recordOutcome(out)
	}()

	if !row.HasMandatoryColumns() {
		out.Status = model.StatusFailed
		out.Error = "structural: отсутствует наименование позиции"
		return out
	}

	det, err := p.detector.Detect(ctx, row)
	if err != nil {
		out.Status = model.StatusFailed
		out.Error = err.Error()
		return out
	}
	out.Status = model.StatusDetected

	rec := model.NewEnrichedRecord(row, det.Category, det.Confidence)
	out.Record = rec
	if det.Category == nil || det.Category.Name == model.CategoryUnknown {
		out.Status = model.StatusRejected
		out.Outcome = &model.ValidationOutcome{Reason: "Не подлежит нормализации: категория не распознана"}
		return out
	}

	key := fingerprint.Key(row.Description(), row.Unit())
	var cls model.ClassificationResult

	if entry := p.cacheGet(ctx, key); entry != nil {
		out.Status = model.StatusCached
		out.CacheHit = true
		p.stats.RecordCacheHit()
		rec = entry.Record.Clone()
		rec.Raw = row
		out.Record = rec
		cls = *entry.Classification
	} else {
		out.Status = model.StatusResearching
		if _, err := p.research.Enrich(ctx, rec); err != nil {
			out.Status = model.StatusFailed
			out.Error = err.Error()
			return out
		}
		p.normalizeUnit(rec)

		if p.classify == nil {
			out.Status = model.StatusFailed
			out.Error = "okpd2: classification registry not configured"
			return out
		}
		cls, err = p.classify.Classify(ctx, rec)
		if err != nil {
			out.Status = model.StatusFailed
			out.Error = err.Error()
			return out
		}
		out.Status = model.StatusClassified

		p.cachePut(ctx, key, rec, cls)
	}

	out.Classification = &cls
	verdict := p.validator.Validate(rec, cls)
	out.Outcome = &verdict
	if verdict.Accepted {
		out.Status = model.StatusAccepted
	} else {
		out.Status = model.StatusRejected
	}
	return out
}

func (p *Pipeline) recordOutcome(out model.RowOutcome) {
	p.stats.RecordProcessed()
	switch out.Status {
	case model.StatusAccepted:
		p.stats.RecordAccepted()
	case model.StatusRejected:
		p.stats.RecordRejected()
	case model.StatusFailed:
		p.stats.RecordFailed()
	}
}

// normalizeUnit fills rec.NormalizedUnit from the conversion table,
// defaulting to the category's expected unit when the source cell is
// empty or unknown.
func (p *Pipeline) normalizeUnit(rec *model.EnrichedRecord) {
	if canonical, ok := validate.NormalizeUnit(rec.Raw.Unit()); ok {
		rec.NormalizedUnit = canonical
		return
	}
	rec.NormalizedUnit = rec.Category.Unit
}

// cacheGet treats backend errors and partial entries as misses.
func (p *Pipeline) cacheGet(ctx context.Context, key string) *cache.Entry {
	entry, ok, err := p.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("pipeline: cache get failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok || entry == nil || entry.Record == nil || entry.Classification == nil {
		return nil
	}
	return entry
}

func (p *Pipeline) cachePut(ctx context.Context, key string, rec *model.EnrichedRecord, cls model.ClassificationResult) {
	entry := &cache.Entry{
		Key:            key,
		Record:         rec,
		Classification: &cls,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.store.Put(ctx, key, entry); err != nil {
		zap.L().Warn("pipeline: cache put failed", zap.String("key", key), zap.Error(err))
	}
}
