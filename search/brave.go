package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Brave queries the Brave web search API.
type Brave struct {
	httpProvider
}

// Name implements Provider.
func (b *Brave) Name() string { return string(BraveProvider) }

// Search implements Provider.
func (b *Brave) Search(ctx context.Context, q string, k int) ([]Hit, error) {
	// https://api.search.brave.com/app/documentation/web-search
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(k))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)
	resp, err := b.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("brave search %q: %w", q, err)
	}
	defer resp.Body.Close()
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}
	var out []Hit
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, Hit{Title: r.Title, URL: r.URL, Snippet: r.Snippet, Position: i + 1})
	}
	return out, nil
}
