// Package okpd2reg queries an OKPD2 classification registry service for
// candidate codes under a given prefix subtree. Like the search client,
// it classifies failures for the caller's retry policy instead of
// retrying itself.
package okpd2reg

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/promdata/mtr-cli/internal/resilience"
)

// Client looks up OKPD2 code candidates.
type Client interface {
	Lookup(ctx context.Context, query, prefix string) ([]Candidate, error)
}

// Candidate is one registry entry: a dot-segmented code, its official
// Russian name, and its depth in the classifier tree.
type Candidate struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type lookupResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default registry base URL.
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
	baseURL string
	http    *http.Client
}

// NewClient creates a registry client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://classifikators.ru/okpd",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, query, prefix string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("q", query)
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	reqURL := c.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "okpd2reg: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "okpd2reg: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "okpd2reg: read response")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("okpd2reg: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewPermanentError(
			eris.Errorf("okpd2reg: unexpected status %d: %s", resp.StatusCode, string(body)),
		)
	}

	var result lookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "okpd2reg: unmarshal response"))
	}
	return result.Candidates, nil
}
