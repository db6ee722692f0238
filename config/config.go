package config

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zhiyu/hypergen/core"
)

// EnvPrefix prefixes every environment override, e.g. HYPERGEN_MODEL_NAME.
const EnvPrefix = "HYPERGEN"

// Mode selects the prompt family and preset.
type Mode string

const (
	ModeStory  Mode = "story"
	ModeReport Mode = "report"
)

// AggregateMode selects how a finished PLAN node combines its children.
type AggregateMode string

const (
	AggregateConcat AggregateMode = "concat"
	AggregateLLM    AggregateMode = "llm"
)

// Config is the full configuration of a run.
type Config struct {
	Mode    Mode          `mapstructure:"mode" yaml:"mode"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Tasks   TaskTypes     `mapstructure:"tasks" yaml:"tasks"`
	Retry   Retry         `mapstructure:"retry" yaml:"retry"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ModelConfig selects the completion backend.
type ModelConfig struct {
	// Provider is openai, anthropic or mock.
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Name      string `mapstructure:"name" yaml:"name"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxCalls caps model calls per item; 0 is unlimited.
	MaxCalls int  `mapstructure:"max_calls" yaml:"max_calls"`
	Stream   bool `mapstructure:"stream" yaml:"stream"`
}

// SearchConfig tunes the search agent and its pipeline.
type SearchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Provider is brave or serper.
	Provider string  `mapstructure:"provider" yaml:"provider"`
	APIKey   string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL  string  `mapstructure:"base_url" yaml:"base_url"`
	QPS      float64 `mapstructure:"qps" yaml:"qps"`
	// Fetcher is http or chromedp.
	Fetcher      string        `mapstructure:"fetcher" yaml:"fetcher"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	MaxPageChars int           `mapstructure:"max_page_chars" yaml:"max_page_chars"`

	TopK              int `mapstructure:"topk" yaml:"topk"`
	PKQuota           int `mapstructure:"pk_quota" yaml:"pk_quota"`
	SelectQuota       int `mapstructure:"select_quota" yaml:"select_quota"`
	MaxTurn           int `mapstructure:"max_turn" yaml:"max_turn"`
	SearchThreads     int `mapstructure:"search_threads" yaml:"search_threads"`
	WebpageThreads    int `mapstructure:"webpage_threads" yaml:"webpage_threads"`
	SelectorThreads   int `mapstructure:"selector_threads" yaml:"selector_threads"`
	SummarizerThreads int `mapstructure:"summarizer_threads" yaml:"summarizer_threads"`

	SelectorModel   string  `mapstructure:"selector_model" yaml:"selector_model"`
	SummarizerModel string  `mapstructure:"summarizer_model" yaml:"summarizer_model"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	// LLMMerge condenses the raw rounds into one answer with the model.
	LLMMerge bool `mapstructure:"llm_merge" yaml:"llm_merge"`
}

// TaskConfig is the behaviour of one task type.
type TaskConfig struct {
	// AllAtom treats every task of the type as atomic.
	AllAtom bool `mapstructure:"all_atom" yaml:"all_atom"`
	// AtomUpdate refines the goal of an all-atom task from its dependencies.
	AtomUpdate bool `mapstructure:"atom_update" yaml:"atom_update"`
	// OnlyOnDepend limits AtomUpdate to tasks that have dependencies.
	OnlyOnDepend bool `mapstructure:"only_on_depend" yaml:"only_on_depend"`
	// UseCandidatePlan adopts the plan carried down from the parent.
	UseCandidatePlan bool `mapstructure:"use_candidate_plan" yaml:"use_candidate_plan"`
	// ForceAtomLayer makes tasks at or below this layer atomic; 0 disables it.
	ForceAtomLayer int `mapstructure:"force_atom_layer" yaml:"force_atom_layer"`
	// UpdateOnAtom lets the atom judgement rewrite the goal.
	UpdateOnAtom bool `mapstructure:"update_on_atom" yaml:"update_on_atom"`
	// UpdateGoal makes the update action rewrite the goal with the model.
	UpdateGoal bool          `mapstructure:"update_goal" yaml:"update_goal"`
	Aggregate  AggregateMode `mapstructure:"aggregate" yaml:"aggregate"`
	// GlobalOutline shows writers the whole outline, not just the started part.
	GlobalOutline      bool    `mapstructure:"global_outline" yaml:"global_outline"`
	PlanTemperature    float64 `mapstructure:"plan_temperature" yaml:"plan_temperature"`
	ExecuteTemperature float64 `mapstructure:"execute_temperature" yaml:"execute_temperature"`
}

// TaskTypes holds one TaskConfig per task type.
type TaskTypes struct {
	Search      TaskConfig `mapstructure:"search" yaml:"search"`
	Analysis    TaskConfig `mapstructure:"analysis" yaml:"analysis"`
	Composition TaskConfig `mapstructure:"composition" yaml:"composition"`
}

// For returns the configuration of a task type.
func (t TaskTypes) For(tt core.TaskType) TaskConfig {
	switch tt {
	case core.TaskTypeSearch:
		return t.Search
	case core.TaskTypeAnalysis:
		return t.Analysis
	default:
		return t.Composition
	}
}

// Retry holds the attempt budgets of every bounded retry site.
type Retry struct {
	Atom        int `mapstructure:"atom" yaml:"atom"`
	Plan        int `mapstructure:"plan" yaml:"plan"`
	Execute     int `mapstructure:"execute" yaml:"execute"`
	SearchMerge int `mapstructure:"search_merge" yaml:"search_merge"`
	SearchParse int `mapstructure:"search_parse" yaml:"search_parse"`
	Search      int `mapstructure:"search" yaml:"search"`
	Provider    int `mapstructure:"provider" yaml:"provider"`
	Selector    int `mapstructure:"selector" yaml:"selector"`
	Summarizer  int `mapstructure:"summarizer" yaml:"summarizer"`
}

// EngineConfig bounds the scheduler.
type EngineConfig struct {
	MaxSteps  int    `mapstructure:"max_steps" yaml:"max_steps"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Language  string `mapstructure:"language" yaml:"language"`
	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	// Backend is file, memory, redis or none.
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Preset returns the defaults of a mode.
func Preset(m Mode) (Config, error) {
	switch m {
	case ModeStory:
		return Story(), nil
	case ModeReport, "":
		return Report(), nil
	default:
		return Config{}, fmt.Errorf("unknown mode %q", m)
	}
}

// Load reads the configuration. Defaults come from the preset of the mode
// named by the file or HYPERGEN_MODE (report when absent); the file and the
// environment override them. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	preset, err := Preset(Mode(v.GetString("mode")))
	if err != nil {
		return nil, err
	}
	if err := setDefaults(v, preset); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every field of preset as a viper default so the
// environment can override keys that no file mentions.
func setDefaults(v *viper.Viper, preset Config) error {
	raw, err := yaml.Marshal(preset)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Validate checks the configuration for values no run can work with.
func (c *Config) Validate() error {
	if _, err := Preset(c.Mode); err != nil {
		return err
	}
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("model.provider must be openai, anthropic or mock, got %q", c.Model.Provider)
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be > 0")
	}
	if c.Search.Enabled {
		switch c.Search.Provider {
		case "brave", "serper":
		default:
			return fmt.Errorf("search.provider must be brave or serper, got %q", c.Search.Provider)
		}
		if c.Search.MaxTurn <= 0 {
			return fmt.Errorf("search.max_turn must be > 0")
		}
	}
	for name, tc := range map[string]TaskConfig{
		"search":      c.Tasks.Search,
		"analysis":    c.Tasks.Analysis,
		"composition": c.Tasks.Composition,
	} {
		switch tc.Aggregate {
		case AggregateConcat, AggregateLLM:
		default:
			return fmt.Errorf("tasks.%s.aggregate must be concat or llm, got %q", name, tc.Aggregate)
		}
		if tc.ForceAtomLayer < 0 {
			return fmt.Errorf("tasks.%s.force_atom_layer cannot be negative", name)
		}
	}
	switch c.Cache.Backend {
	case "file", "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be file, memory, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	return nil
}

// Dump writes the configuration as YAML. Secrets are masked.
func (c *Config) Dump(w io.Writer) error {
	masked := *c
	masked.Model.APIKey = mask(masked.Model.APIKey)
	masked.Search.APIKey = mask(masked.Search.APIKey)
	masked.Cache.RedisPassword = mask(masked.Cache.RedisPassword)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
