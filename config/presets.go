package config

import "time"

func base() Config {
	return Config{
		Model: ModelConfig{
			Provider:  "openai",
			Name:      "gpt-4o",
			MaxTokens: 8192,
		},
		Search: SearchConfig{
			Provider:          "serper",
			QPS:               5,
			Fetcher:           "http",
			FetchTimeout:      15 * time.Second,
			MaxPageChars:      20000,
			TopK:              20,
			PKQuota:           20,
			SelectQuota:       20,
			MaxTurn:           5,
			SearchThreads:     4,
			WebpageThreads:    10,
			SelectorThreads:   8,
			SummarizerThreads: 8,
			SelectorModel:     "gpt-4o-mini",
			SummarizerModel:   "gpt-4o-mini",
			Temperature:       0.2,
		},
		Retry: Retry{
			Atom:        10,
			Plan:        10,
			Execute:     50,
			SearchMerge: 50,
			SearchParse: 100,
			Search:      3,
			Provider:    8,
			Selector:    5,
			Summarizer:  3,
		},
		Engine: EngineConfig{
			MaxSteps:  10000,
			OutputDir: "records",
			Language:  "en",
		},
		Cache: CacheConfig{
			Backend:     "file",
			Dir:         "cache",
			RedisPrefix: "hypergen:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func taskDefaults() TaskConfig {
	return TaskConfig{
		Aggregate:          AggregateConcat,
		PlanTemperature:    0.1,
		ExecuteTemperature: 0.3,
	}
}

// Story is the fiction preset: no web search, analysis tasks follow the plan
// their parent proposed and are combined by the model.
func Story() Config {
	c := base()
	c.Mode = ModeStory
	c.Search.Enabled = false

	c.Tasks.Composition = taskDefaults()
	c.Tasks.Composition.UpdateOnAtom = true

	c.Tasks.Search = taskDefaults()
	c.Tasks.Search.AllAtom = true

	c.Tasks.Analysis = taskDefaults()
	c.Tasks.Analysis.UseCandidatePlan = true
	c.Tasks.Analysis.Aggregate = AggregateLLM
	return c
}

// Report is the search-augmented report preset.
func Report() Config {
	c := base()
	c.Mode = ModeReport
	c.Search.Enabled = true
	c.Search.LLMMerge = true

	c.Tasks.Composition = taskDefaults()
	c.Tasks.Composition.UpdateOnAtom = true
	c.Tasks.Composition.ForceAtomLayer = 3

	c.Tasks.Search = taskDefaults()
	c.Tasks.Search.AllAtom = true
	c.Tasks.Search.AtomUpdate = true
	c.Tasks.Search.OnlyOnDepend = true

	c.Tasks.Analysis = taskDefaults()
	c.Tasks.Analysis.AllAtom = true
	return c
}
