package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/pkg/anthropic"
	"github.com/promdata/mtr-cli/pkg/okpd2reg"
	"github.com/promdata/mtr-cli/pkg/websearch"
)

func init() {
	// Replace global logger with a no-op to keep test output readable.
	zap.ReplaceGlobals(zap.NewNop())
}

// --- Anthropic mock ---

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Web search mock ---

type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) Search(ctx context.Context, query string, opts ...websearch.SearchOption) (*websearch.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*websearch.SearchResponse), args.Error(1)
}

// --- OKPD2 registry mock ---

type mockRegistryClient struct {
	mock.Mock
}

func (m *mockRegistryClient) Lookup(ctx context.Context, query, prefix string) ([]okpd2reg.Candidate, error) {
	args := m.Called(ctx, query, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]okpd2reg.Candidate), args.Error(1)
}
