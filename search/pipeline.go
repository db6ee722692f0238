package search

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zhiyu/hypergen/cache"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/logging"
)

// Cache scope names.
const (
	SearchScope = "search"
	PageScope   = "search.page"
)

// Options bound the pipeline's fan-out.
type Options struct {
	TopK              int
	PKQuota           int
	SelectQuota       int
	SearchThreads     int
	WebpageThreads    int
	SelectorThreads   int
	SummarizerThreads int
}

// DefaultOptions mirrors the report preset.
func DefaultOptions() Options {
	return Options{
		TopK:              20,
		PKQuota:           20,
		SelectQuota:       20,
		SearchThreads:     4,
		WebpageThreads:    10,
		SelectorThreads:   8,
		SummarizerThreads: 8,
	}
}

// Query is one round of searching.
type Query struct {
	// Question is the information need the round serves.
	Question string
	// Think is the reasoning that produced the queries.
	Think   string
	Queries []string
	// Fresh skips cached hits and pages; the fresh results replace them.
	Fresh bool
}

// Pipeline runs search, merge, fetch, select and summarize for one round.
// Every worker pool joins before Run returns.
type Pipeline struct {
	provider   Provider
	fetcher    Fetcher
	selector   Selector
	summarizer Summarizer
	searches   *cache.Scope
	pages      *cache.Scope
	opts       Options
	logger     logging.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSelector grades pages; without one every fetched page is kept.
func WithSelector(s Selector) PipelineOption { return func(p *Pipeline) { p.selector = s } }

// WithSummarizer condenses pages; without one the raw content is used.
func WithSummarizer(s Summarizer) PipelineOption { return func(p *Pipeline) { p.summarizer = s } }

// WithCache memoizes provider searches and fetched pages.
func WithCache(store cache.Store) PipelineOption {
	return func(p *Pipeline) {
		p.searches = cache.NewScope(store, SearchScope)
		p.pages = cache.NewScope(store, PageScope)
	}
}

// WithOptions overrides the fan-out bounds.
func WithOptions(o Options) PipelineOption { return func(p *Pipeline) { p.opts = o } }

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) PipelineOption { return func(p *Pipeline) { p.logger = l } }

// NewPipeline wires a pipeline around a provider and fetcher.
func NewPipeline(provider Provider, fetcher Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		provider: provider,
		fetcher:  fetcher,
		opts:     DefaultOptions(),
		logger:   logging.NoOpLogger{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func limit(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Run executes one round. Results carry citation indices from startIndex
// upward. Provider and fetch failures drop the affected query or page; only
// cancellation fails the round.
func (p *Pipeline) Run(ctx context.Context, q Query, startIndex int) ([]core.SearchResult, error) {
	queries := dedupe(q.Queries)
	if len(queries) == 0 {
		return nil, nil
	}
	hits, err := p.searchAll(ctx, queries, q.Fresh)
	if err != nil {
		return nil, err
	}
	merged := Merge(queries, hits, p.opts.PKQuota)
	fetched, err := p.fetchAll(ctx, merged, q.Fresh)
	if err != nil {
		return nil, err
	}
	selected := fetched
	if p.selector != nil {
		if err := p.scoreAll(ctx, q, fetched); err != nil {
			return nil, err
		}
		n := p.opts.SelectQuota
		if len(queries) > n {
			n = len(queries)
		}
		selected = Select(queries, fetched, n)
	}
	if p.summarizer != nil {
		selected, err = p.summarizeAll(ctx, q, selected)
		if err != nil {
			return nil, err
		}
	}
	p.logger.Info("search round done", "queries", len(queries), "merged", len(merged),
		"fetched", len(fetched), "kept", len(selected))

	out := make([]core.SearchResult, len(selected))
	for i, c := range selected {
		out[i] = core.SearchResult{
			Index:       startIndex + i,
			URL:         c.Hit.URL,
			Title:       c.Title(),
			Snippet:     c.Hit.Snippet,
			Content:     c.Page.Content,
			Summary:     c.Summary,
			PublishTime: c.Page.PublishTime,
			Query:       c.Query,
			Score:       float64(c.Score),
		}
	}
	return out, nil
}

func dedupe(qs []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

type searchArgs struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
	K        int    `json:"k"`
}

func (p *Pipeline) searchAll(ctx context.Context, queries []string, fresh bool) (map[string][]Hit, error) {
	var mu sync.Mutex
	out := make(map[string][]Hit, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(p.opts.SearchThreads))
	for _, q := range queries {
		g.Go(func() error {
			hits, err := p.search(gctx, q, fresh)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("search failed", "query", q, "error", err)
				return nil
			}
			mu.Lock()
			out[q] = hits
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) search(ctx context.Context, q string, fresh bool) ([]Hit, error) {
	args := searchArgs{Provider: p.provider.Name(), Query: q, K: p.opts.TopK}
	var hits []Hit
	if !fresh {
		if hit, err := p.searches.Lookup(ctx, args, &hits); err != nil {
			return nil, err
		} else if hit && len(hits) > 0 {
			return hits, nil
		}
	}
	hits, err := p.provider.Search(ctx, q, p.opts.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		if err := p.searches.Save(ctx, args, hits); err != nil {
			p.logger.Warn("search cache write failed", "error", err)
		}
	}
	return hits, nil
}

// Merge interleaves hits across queries round-robin, in query order, until
// quota candidates are taken. PDF links and repeated URLs are skipped.
// Candidates are numbered from 1 in merge order.
func Merge(queries []string, hits map[string][]Hit, quota int) []Candidate {
	seen := map[string]bool{}
	cursors := make([]int, len(queries))
	var out []Candidate
	for quota <= 0 || len(out) < quota {
		progressed := false
		for i, q := range queries {
			if quota > 0 && len(out) >= quota {
				break
			}
			list := hits[q]
			for cursors[i] < len(list) {
				h := list[cursors[i]]
				cursors[i]++
				if h.URL == "" || seen[h.URL] || isPDF(h.URL) {
					continue
				}
				seen[h.URL] = true
				out = append(out, Candidate{Hit: h, Query: q, PKIndex: len(out) + 1})
				progressed = true
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func isPDF(raw string) bool {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func (p *Pipeline) fetchAll(ctx context.Context, cands []Candidate, fresh bool) ([]Candidate, error) {
	ok := make([]bool, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(p.opts.WebpageThreads))
	for i := range cands {
		g.Go(func() error {
			page, err := p.fetch(gctx, cands[i].Hit.URL, fresh)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Debug("fetch failed", "url", cands[i].Hit.URL, "error", err)
				return nil
			}
			cands[i].Page = page
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		if ok[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Pipeline) fetch(ctx context.Context, rawURL string, fresh bool) (Page, error) {
	args := map[string]string{"url": rawURL}
	var page Page
	if !fresh {
		if hit, err := p.pages.Lookup(ctx, args, &page); err == nil && hit && page.Content != "" {
			return page, nil
		}
	}
	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	if page.Content == "" {
		return page, nil
	}
	if err := p.pages.Save(ctx, args, page); err != nil {
		p.logger.Warn("page cache write failed", "error", err)
	}
	return page, nil
}

func (p *Pipeline) scoreAll(ctx context.Context, q Query, cands []Candidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(p.opts.SelectorThreads))
	for i := range cands {
		g.Go(func() error {
			score, err := p.selector.Score(gctx, q.Question, q.Think, cands[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Debug("select failed", "url", cands[i].Hit.URL, "error", err)
				score = 0
			}
			cands[i].Score = score
			return nil
		})
	}
	return g.Wait()
}

// Select drops pages scored 0, orders the rest by score then merge order,
// and takes up to n pages round-robin across queries.
func Select(queries []string, cands []Candidate, n int) []Candidate {
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Score > 0 {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].PKIndex < kept[j].PKIndex
	})
	byQuery := map[string][]Candidate{}
	for _, c := range kept {
		byQuery[c.Query] = append(byQuery[c.Query], c)
	}
	cursors := map[string]int{}
	var out []Candidate
	for len(out) < n {
		found := false
		for _, q := range queries {
			if len(out) >= n {
				break
			}
			i := cursors[q]
			if i >= len(byQuery[q]) {
				continue
			}
			found = true
			cursors[q]++
			out = append(out, byQuery[q][i])
		}
		if !found {
			break
		}
	}
	return out
}

func (p *Pipeline) summarizeAll(ctx context.Context, q Query, cands []Candidate) ([]Candidate, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit(p.opts.SummarizerThreads))
	for i := range cands {
		g.Go(func() error {
			summary, err := p.summarizer.Summarize(gctx, q.Question, q.Think, cands[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Debug("summarize failed", "url", cands[i].Hit.URL, "error", err)
				return nil
			}
			cands[i].Summary = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c.Summary) != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
