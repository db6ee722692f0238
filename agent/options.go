package agent

import (
	"context"
	"time"

	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/core"
	"github.com/zhiyu/hypergen/internal/prompt"
	"github.com/zhiyu/hypergen/internal/retry"
	"github.com/zhiyu/hypergen/logging"
	"github.com/zhiyu/hypergen/model"
	"github.com/zhiyu/hypergen/search"
	"github.com/zhiyu/hypergen/task"
)

// Retriever runs one search round. *search.Pipeline implements it.
type Retriever interface {
	Run(ctx context.Context, q search.Query, startIndex int) ([]core.SearchResult, error)
}

var _ Retriever = (*search.Pipeline)(nil)

// Options configures the agents. Use functional options with New or the
// individual constructors to override the report defaults.
type Options struct {
	Mode   prompt.Mode
	Tasks  config.TaskTypes
	Retry  config.Retry
	Search config.SearchConfig
	// Retriever backs SEARCH execution. Without one SEARCH tasks are
	// answered by the model like analysis tasks.
	Retriever Retriever
	// Today is the date shown to the model; empty means the current date.
	Today  string
	Logger logging.Logger
}

func defaultOptions() Options {
	preset := config.Report()
	return Options{
		Mode:   prompt.ModeReport,
		Tasks:  preset.Tasks,
		Retry:  preset.Retry,
		Search: preset.Search,
		Logger: logging.NoOpLogger{},
	}
}

// env is the state shared by the agents built from one Options.
type env struct {
	llm  model.Model
	opts Options
}

func newEnv(llm model.Model, optFns ...func(o *Options)) *env {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &env{llm: llm, opts: opts}
}

func (e *env) today() string {
	if e.opts.Today != "" {
		return e.opts.Today
	}
	return time.Now().Format("Jan 2, 2006")
}

func (e *env) cfgFor(n *task.Node) config.TaskConfig {
	return e.opts.Tasks.For(n.Info.TaskType)
}

// ask renders the role's prompt and returns the model's text. Errors are
// permanent for the caller's retry loop, which only retries bad answers.
func (e *env) ask(ctx context.Context, role prompt.Role, data prompt.Data, temperature float64, a retry.Attempt) (string, error) {
	tmpl, err := prompt.Lookup(e.opts.Mode, role)
	if err != nil {
		return "", retry.Permanent(err)
	}
	system, user, err := tmpl.Build(data)
	if err != nil {
		return "", retry.Permanent(err)
	}
	req := model.Prompt(system, user)
	req.Temperature = model.Float(temperature)
	req.OverwriteCache = a.Overwrite
	text, err := model.CompleteText(ctx, e.llm, req)
	if err != nil {
		// Transport failures were already retried by the model middleware.
		return "", retry.Permanent(err)
	}
	return text, nil
}

func (e *env) retryLogger(site, nodeID string) func(retry.Attempt, error) {
	return func(a retry.Attempt, err error) {
		e.opts.Logger.Warn("retrying", "site", site, "node", nodeID, "attempt", a.N+1, "error", err)
	}
}
