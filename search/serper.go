package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// Serper queries the serper.dev Google search API.
type Serper struct {
	httpProvider
}

// Name implements Provider.
func (s *Serper) Name() string { return string(SerperProvider) }

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, q string, k int) ([]Hit, error) {
	// https://serper.dev/ docs
	body, err := json.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("serper search %q: %w", q, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read serper response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("serper response is not JSON")
	}

	var out []Hit
	gjson.GetBytes(raw, "organic").ForEach(func(_, item gjson.Result) bool {
		if len(out) >= k {
			return false
		}
		pos := int(item.Get("position").Int())
		if pos == 0 {
			pos = len(out) + 1
		}
		out = append(out, Hit{
			Title:    item.Get("title").String(),
			URL:      item.Get("link").String(),
			Snippet:  item.Get("snippet").String(),
			Position: pos,
		})
		return true
	})
	return out, nil
}
