// Package hypergen provides a high-level façade that turns a configuration
// into ready-to-run engines. Most applications interact with this package by:
//  1. Loading a config.Config (config.Load) or starting from a preset
//  2. Creating a Hypergen via New()
//  3. Running a single goal (Generate) or a JSONL batch (RunBatch)
//
// The façade owns the shared collaborators of a process (response caches,
// the completion backend, the metrics registry) and builds a fresh model
// stack, agent worker and engine for every goal.
package hypergen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/zhiyu/hypergen/agent"
	"github.com/zhiyu/hypergen/artifact"
	"github.com/zhiyu/hypergen/cache"
	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/engine"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/logging"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/model/anthropic"
	"github.com/zhiyu/hypergen/model/openai"
	"github.com/zhiyu/hypergen/runner"
	"github.com/zhiyu/hypergen/search"
	"github.com/zhiyu/hypergen/task"
)

// Options configures the Hypergen instance. Every collaborator left nil is
// built from Config.
type Options struct {
	// Config is the run configuration. Defaults to the report preset.
	Config *config.Config

	// Model overrides the configured completion backend.
	Model model.Model

	// Retriever overrides the configured search pipeline.
	Retriever agent.Retriever

	// LLMCache and SearchCache override the configured cache backend.
	LLMCache    cache.Store
	SearchCache cache.Store

	// CachePrefix names the cache files of a batch slice, e.g. "0-100".
	CachePrefix string

	// Fs holds the per-goal records. Defaults to the OS filesystem.
	Fs afero.Fs

	// Registry collects engine metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Hypergen is the high-level façade aggregating configuration, caches and
// metrics.
type Hypergen struct {
	cfg         *config.Config
	llm         model.Model
	retriever   agent.Retriever
	llmCache    cache.Store
	searchCache cache.Store
	fs          afero.Fs
	registry    *prometheus.Registry
	metrics     *engine.Metrics
	logger      logging.Logger
	closers     []func() error
}

// New creates a Hypergen instance with optional overrides.
func New(optFns ...func(o *Options)) (*Hypergen, error) {
	opts := Options{
		Fs:     afero.NewOsFs(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		cfg := config.Report()
		opts.Config = &cfg
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	h := &Hypergen{
		cfg:         opts.Config,
		llm:         opts.Model,
		retriever:   opts.Retriever,
		llmCache:    opts.LLMCache,
		searchCache: opts.SearchCache,
		fs:          opts.Fs,
		registry:    opts.Registry,
		metrics:     engine.NewMetrics(opts.Registry),
		logger:      opts.Logger,
	}
	if h.llm == nil {
		llm, err := NewModel(h.cfg.Model)
		if err != nil {
			return nil, err
		}
		h.llm = llm
	}
	if err := h.openCaches(opts.CachePrefix); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// NewModel builds the completion backend named by cfg.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

func (h *Hypergen) openCaches(prefix string) error {
	name := func(scope string) string {
		if prefix == "" {
			return scope
		}
		return prefix + "-" + scope
	}
	open := func(scope string) (cache.Store, error) {
		c := h.cfg.Cache
		switch c.Backend {
		case "file":
			return cache.OpenFile(filepath.Join(c.Dir, name(scope)))
		case "memory":
			return cache.NewMemoryStore(), nil
		case "redis":
			store := cache.NewRedisStore(cache.RedisOptions{
				Addr:     c.RedisAddr,
				Password: c.RedisPassword,
				DB:       c.RedisDB,
				Prefix:   c.RedisPrefix + name(scope) + ":",
				TTL:      c.TTL,
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("redis %s: %w", c.RedisAddr, err)
			}
			return store, nil
		default:
			return nil, nil
		}
	}
	if h.llmCache == nil {
		store, err := open("llm")
		if err != nil {
			return fmt.Errorf("open llm cache: %w", err)
		}
		if store != nil {
			h.llmCache = store
			h.closers = append(h.closers, store.Close)
		}
	}
	if h.searchCache == nil {
		store, err := open("search")
		if err != nil {
			return fmt.Errorf("open search cache: %w", err)
		}
		if store != nil {
			h.searchCache = store
			h.closers = append(h.closers, store.Close)
		}
	}
	return nil
}

// Config returns the effective configuration.
func (h *Hypergen) Config() *config.Config { return h.cfg }

// Registry returns the registry engine metrics are collected in.
func (h *Hypergen) Registry() *prometheus.Registry { return h.registry }

// rootInfo is the task every goal starts from: one COMPOSITION task whose
// length the planner decides.
func (h *Hypergen) rootInfo(goal string) task.Info {
	length := "You should determine itself, according to the question"
	if h.cfg.Mode == config.ModeStory {
		length = "determine based on the task requirements:"
	}
	return task.Info{Goal: goal, TaskType: core.TaskTypeComposition, Length: length}
}

// modelStack wraps the backend for one goal: cache hits are free, misses
// are logged, retried on transient failures and counted against the goal's
// call budget.
func (h *Hypergen) modelStack(logger logging.Logger) model.Model {
	budget := core.NewCallBudget(h.cfg.Model.MaxCalls)
	m := model.Budgeted(h.llm, budget)
	m = model.Retrying(m, model.RetryOptions{
		MaxAttempts: h.cfg.Retry.Provider,
		OnRetry: func(err error, wait time.Duration) {
			logger.Warn("model call failed, retrying", "error", err, "wait", wait)
		},
	})
	if cl, ok := logger.(model.CallLogger); ok {
		m = model.Logged(m, cl)
	}
	if h.llmCache != nil {
		m = model.Cached(m, h.llmCache)
	}
	return m
}

func (h *Hypergen) newRetriever(llm model.Model, logger logging.Logger) (agent.Retriever, error) {
	if h.retriever != nil {
		return h.retriever, nil
	}
	sc := h.cfg.Search
	if !sc.Enabled {
		return nil, nil
	}
	provider, err := search.NewProvider(search.ProviderName(sc.Provider), search.ProviderOptions{
		APIKey:  sc.APIKey,
		BaseURL: sc.BaseURL,
		QPS:     sc.QPS,
	})
	if err != nil {
		return nil, err
	}
	fetcher, err := search.NewFetcher(search.FetcherType(sc.Fetcher), sc.FetchTimeout, sc.MaxPageChars)
	if err != nil {
		return nil, err
	}
	opts := []search.PipelineOption{
		search.WithOptions(search.Options{
			TopK:              sc.TopK,
			PKQuota:           sc.PKQuota,
			SelectQuota:       sc.SelectQuota,
			SearchThreads:     sc.SearchThreads,
			WebpageThreads:    sc.WebpageThreads,
			SelectorThreads:   sc.SelectorThreads,
			SummarizerThreads: sc.SummarizerThreads,
		}),
		search.WithSelector(&search.LLMSelector{Model: llm, ModelName: sc.SelectorModel, Attempts: h.cfg.Retry.Selector}),
		search.WithSummarizer(&search.LLMSummarizer{Model: llm, ModelName: sc.SummarizerModel, Attempts: h.cfg.Retry.Summarizer}),
		search.WithLogger(logger),
	}
	if h.searchCache != nil {
		opts = append(opts, search.WithCache(h.searchCache))
	}
	return search.NewPipeline(provider, fetcher, opts...), nil
}

// NewEngine builds a fresh engine for goal. Its artifacts are written to
// <engine.output_dir>/<runID>.
func (h *Hypergen) NewEngine(goal, runID string, logger logging.Logger) (*engine.Engine, error) {
	if logger == nil {
		logger = h.logger
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	llm := h.modelStack(logger)
	retriever, err := h.newRetriever(llm, logger)
	if err != nil {
		return nil, err
	}
	worker := agent.New(llm, func(o *agent.Options) {
		o.Mode = prompt.Mode(h.cfg.Mode)
		o.Tasks = h.cfg.Tasks
		o.Retry = h.cfg.Retry
		o.Search = h.cfg.Search
		o.Retriever = retriever
		o.Logger = logger
	})
	return engine.New(h.rootInfo(goal), agent.NewProxy(worker), func(o *engine.Options) {
		o.Config = engine.Config{MaxSteps: h.cfg.Engine.MaxSteps}
		o.RunID = runID
		o.ArtifactStore = artifact.NewFSStore(h.fs, h.cfg.Engine.OutputDir)
		o.Logger = logger
		o.Metrics = h.metrics
	}), nil
}

// Generate runs a single goal to completion and returns the root result.
func (h *Hypergen) Generate(ctx context.Context, goal string) (string, error) {
	eng, err := h.NewEngine(goal, "", nil)
	if err != nil {
		return "", err
	}
	return eng.Run(ctx)
}

// RunBatch runs every selected item of the JSONL file input and appends
// the finished items to output.
func (h *Hypergen) RunBatch(ctx context.Context, input, output string, optFns ...func(o *runner.Options)) (runner.Summary, error) {
	r := runner.New(func(_ context.Context, item runner.Item, logger logging.Logger) (*engine.Engine, error) {
		return h.NewEngine(item.Input, item.ID, logger)
	}, append([]func(o *runner.Options){func(o *runner.Options) {
		o.Fs = h.fs
		o.Logger = h.logger
		o.RecordsDir = h.cfg.Engine.OutputDir
		o.LogLevel = logging.ParseLevel(h.cfg.Logging.Level)
	}}, optFns...)...)
	return r.Run(ctx, input, output)
}

// ServeMetrics serves the registry on addr at /metrics until ctx is done.
func (h *Hypergen) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the caches opened by New.
func (h *Hypergen) Close() error {
	var errs []error
	for _, c := range h.closers {
		errs = append(errs, c())
	}
	h.closers = nil
	return errors.Join(errs...)
}
