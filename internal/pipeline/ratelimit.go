package pipeline

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/pkg/anthropic"
	"github.com/promdata/mtr-cli/pkg/okpd2reg"
	"github.com/promdata/mtr-cli/pkg/websearch"
)

// The metered wrappers sit between the agents and the real clients.
// Every call first waits on the shared limiter, so the configured
// requests-per-second ceiling holds across all workers, then bumps the
// run counters. Retried attempts each pay the limiter again.

type meteredAI struct {
	inner   anthropic.Client
	limiter *rate.Limiter
	stats   *model.RunStatistics
}

func (m *meteredAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	m.stats.RecordAPICall()
	resp, err := m.inner.CreateMessage(ctx, req)
	if err == nil {
		m.stats.RecordTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	return resp, err
}

type meteredSearch struct {
	inner   websearch.Client
	limiter *rate.Limiter
	stats   *model.RunStatistics
}

func (m *meteredSearch) Search(ctx context.Context, query string, opts ...websearch.SearchOption) (*websearch.SearchResponse, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	m.stats.RecordAPICall()
	return m.inner.Search(ctx, query, opts...)
}

type meteredRegistry struct {
	inner   okpd2reg.Client
	limiter *rate.Limiter
	stats   *model.RunStatistics
}

func (m *meteredRegistry) Lookup(ctx context.Context, query, prefix string) ([]okpd2reg.Candidate, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	m.stats.RecordAPICall()
	return m.inner.Lookup(ctx, query, prefix)
}
