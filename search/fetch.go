package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxChars     = 20000
)

const userAgent = "hypergen/1.0 (+https://github.com/zhiyu/hypergen)"

// FetcherType selects a page fetcher.
type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// NewFetcher builds the named fetcher.
func NewFetcher(t FetcherType, timeout time.Duration, maxChars int) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	switch t {
	case HTTPFetcherType, "":
		return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, Timeout: timeout, MaxChars: maxChars}, nil
	case ChromedpFetcherType:
		return &ChromeFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", t)
	}
}

// HTTPFetcher downloads a page with a plain GET and extracts the readable
// article text.
type HTTPFetcher struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxChars int
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Page{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Page{}, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Page{}, err
	}
	return extract(string(body), rawURL, f.MaxChars)
}

// ChromeFetcher renders the page in headless Chrome before extraction, for
// sites that build their content in the browser.
type ChromeFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

// Fetch implements Fetcher.
func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Page{}, errors.New("invalid url")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return extract(html, rawURL, f.MaxChars)
}

func fetchHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func extract(html, rawURL string, maxChars int) (Page, error) {
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return Page{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Page{}, fmt.Errorf("extract %s: no readable text", rawURL)
	}
	page := Page{
		URL:     rawURL,
		Title:   strings.TrimSpace(article.Title),
		Content: truncate(text, maxChars),
	}
	if article.PublishedTime != nil {
		page.PublishTime = article.PublishedTime.Format("2006-01-02")
	}
	return page, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
