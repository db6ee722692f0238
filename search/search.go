// Package search turns a batch of web search queries into cited, summarized
// evidence pages: provider search, round-robin merge, page fetching, LLM
// relevance selection and LLM summarization.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Hit is one organic result returned by a Provider.
type Hit struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Provider runs one web search.
type Provider interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Name() string
}

// Page is the readable text of a fetched URL.
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishTime string `json:"publish_time,omitempty"`
}

// Fetcher downloads and extracts one page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// ProviderName selects a search backend.
type ProviderName string

const (
	SerperProvider ProviderName = "serper"
	BraveProvider  ProviderName = "brave"
)

// ErrUnsupportedProvider is returned for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported search provider")

// ProviderOptions configure NewProvider.
type ProviderOptions struct {
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// QPS limits outgoing requests; zero disables limiting.
	QPS     float64
	Timeout time.Duration
	Client  *http.Client
}

// NewProvider builds the named provider.
func NewProvider(name ProviderName, opts ProviderOptions) (Provider, error) {
	base := httpProvider{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		client:  opts.Client,
		limiter: newLimiter(opts.QPS),
	}
	if base.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		base.client = &http.Client{Timeout: timeout}
	}
	switch name {
	case SerperProvider:
		if base.baseURL == "" {
			base.baseURL = "https://google.serper.dev/search"
		}
		return &Serper{httpProvider: base}, nil
	case BraveProvider:
		if base.baseURL == "" {
			base.baseURL = "https://api.search.brave.com/res/v1/web/search"
		}
		return &Brave{httpProvider: base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

func newLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return nil
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

type httpProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func (p *httpProvider) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.Redacted()}
	}
	return resp, nil
}

// StatusError is a non-2xx provider or fetch response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.Code, e.URL)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
