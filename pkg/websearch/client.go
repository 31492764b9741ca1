// Package websearch is the knowledge-source boundary: submit a query,
// receive a ranked list of result snippets. The transport is a plain
// JSON-over-HTTP search gateway; retry policy is owned by the caller, so
// this client only classifies failures as transient or permanent.
package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/promdata/mtr-cli/internal/resilience"
)

// Client performs web searches for product specifications.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the ranked result list for one query.
type SearchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Result is a single ranked search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchOption configures a single search call.
type SearchOption func(*searchOpts)

type searchOpts struct {
	maxResults int
	language   string
}

// WithMaxResults caps the number of returned snippets.
func WithMaxResults(n int) SearchOption {
	return func(o *searchOpts) {
		o.maxResults = n
	}
}

// WithLanguage restricts results to a language code (e.g. "ru").
func WithLanguage(lang string) SearchOption {
	return func(o *searchOpts) {
		o.language = lang
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default gateway base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a search gateway client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{maxResults: 5}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := c.baseURL + "/" + url.QueryEscape(query)
	q := url.Values{}
	if so.maxResults > 0 {
		q.Set("count", strconv.Itoa(so.maxResults))
	}
	if so.language != "" {
		q.Set("hl", so.language)
	}
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: read response")
	}

	// The gateway returns 422 when no results exist for the query.
	// That is an empty result set, not an error.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Query: query}, nil
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("websearch: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewPermanentError(
			eris.Errorf("websearch: unexpected status %d: %s", resp.StatusCode, string(body)),
		)
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "websearch: unmarshal response"))
	}
	result.Query = query
	if so.maxResults > 0 && len(result.Results) > so.maxResults {
		result.Results = result.Results[:so.maxResults]
	}
	return &result, nil
}
