package model

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zhiyu/hypergen/cache"
	"github.com/zhiyu/hypergen/core"
)

// CacheScope is the cache namespace for completions.
const CacheScope = "llm.complete"

type cachedModel struct {
	next  Model
	scope *cache.Scope
}

// Cached memoizes final responses in store, keyed by the model name and the
// full request. Empty answers are never stored. A request with
// OverwriteCache skips the lookup and replaces the stored answer.
func Cached(m Model, store cache.Store) Model {
	if store == nil {
		return m
	}
	return &cachedModel{next: m, scope: cache.NewScope(store, CacheScope)}
}

type cacheArgs struct {
	Model       string    `json:"model"`
	System      string    `json:"system"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

func (c *cachedModel) args(req Request) cacheArgs {
	name := req.Model
	if name == "" {
		name = c.next.Info().Name
	}
	return cacheArgs{
		Model:       name,
		System:      req.System,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (c *cachedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	args := c.args(req)
	if !req.OverwriteCache {
		var text string
		hit, err := c.scope.Lookup(ctx, args, &text)
		if err != nil {
			return single(Response{}, err)
		}
		if hit && text != "" {
			return single(Response{Text: text, FinishReason: "stop"}, nil)
		}
	}
	resp, err := Complete(ctx, c.next, req)
	if err != nil {
		return single(Response{}, err)
	}
	if resp.Text != "" {
		if err := c.scope.Save(ctx, args, resp.Text); err != nil {
			return single(Response{}, err)
		}
	}
	return single(resp, nil)
}

func (c *cachedModel) Info() Info { return c.next.Info() }

// RetryOptions configure Retrying.
type RetryOptions struct {
	// MaxAttempts bounds provider attempts; zero means 8.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

type retryingModel struct {
	next Model
	opts RetryOptions
}

// Retrying retries transient provider failures with exponential backoff.
// Retryable failures are StatusErrors with a retryable code and network
// timeouts; everything else is returned at once.
func Retrying(m Model, opts RetryOptions) Model {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	return &retryingModel{next: m, opts: opts}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

func (r *retryingModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if r.opts.MaxAttempts == 1 {
		policy = &backoff.StopBackOff{}
	} else {
		policy = backoff.WithMaxRetries(b, uint64(r.opts.MaxAttempts-1))
	}

	resp, err := backoff.RetryNotifyWithData(func() (Response, error) {
		resp, err := Complete(ctx, r.next, req)
		if err != nil && !IsRetryable(err) {
			return Response{}, backoff.Permanent(err)
		}
		return resp, err
	}, backoff.WithContext(policy, ctx), r.opts.OnRetry)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return single(Response{}, err)
	}
	return single(resp, nil)
}

func (r *retryingModel) Info() Info { return r.next.Info() }

type budgetedModel struct {
	next   Model
	budget *core.CallBudget
}

// Budgeted spends one unit of budget per provider call and fails with
// core.ErrBudgetExceeded once it is used up. Place it inside Cached so cache
// hits are free.
func Budgeted(m Model, budget *core.CallBudget) Model {
	if budget == nil {
		return m
	}
	return &budgetedModel{next: m, budget: budget}
}

func (b *budgetedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := b.budget.Spend(); err != nil {
		return single(Response{}, err)
	}
	return b.next.Generate(ctx, req)
}

func (b *budgetedModel) Info() Info { return b.next.Info() }

// CallLogger receives one record per completed provider call.
type CallLogger interface {
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

type loggedModel struct {
	next Model
	log  CallLogger
}

// Logged reports every call to log.
func Logged(m Model, log CallLogger) Model {
	if log == nil {
		return m
	}
	return &loggedModel{next: m, log: log}
}

func (l *loggedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	start := time.Now()
	resp, err := Complete(ctx, l.next, req)
	name := req.Model
	if name == "" {
		name = l.next.Info().Name
	}
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	l.log.LogLLMCall(name, tokens, time.Since(start), err == nil, err)
	return single(resp, err)
}

func (l *loggedModel) Info() Info { return l.next.Info() }
