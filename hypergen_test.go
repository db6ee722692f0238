package hypergen

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zhiyu/hypergen/config"
	"github.com/zhiyu/hypergen/engine"
	"github.com/zhiyu/hypergen/model"
)

const atomicStory = "<atomic_task_determination>\natomic\n</atomic_task_determination>\n<article>\nOnce upon a time.\n</article>"

func storyConfig() *config.Config {
	cfg := config.Story()
	cfg.Cache.Backend = "memory"
	cfg.Engine.OutputDir = "records"
	return &cfg
}

func newTestHypergen(t *testing.T, llm model.Model, fsys afero.Fs) *Hypergen {
	t.Helper()
	h, err := New(func(o *Options) {
		o.Config = storyConfig()
		o.Model = llm
		o.Fs = fsys
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestGenerateAtomicStory(t *testing.T) {
	llm := model.NewMockModel("m").Respond(func(model.Request) (string, error) { return atomicStory, nil })
	fsys := afero.NewMemMapFs()
	h := newTestHypergen(t, llm, fsys)

	eng, err := h.NewEngine("a fable about a fox", "fable", nil)
	require.NoError(t, err)
	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.", result)
	assert.Equal(t, 2, llm.CallCount())

	data, err := afero.ReadFile(fsys, "records/fable/"+engine.ArtifactResult)
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.\n", string(data))
	exists, err := afero.Exists(fsys, "records/fable/"+engine.ArtifactDone)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGenerateReplaysCachedCalls(t *testing.T) {
	llm := model.NewMockModel("m").Respond(func(model.Request) (string, error) { return atomicStory, nil })
	h := newTestHypergen(t, llm, afero.NewMemMapFs())

	first, err := h.Generate(context.Background(), "a fable about a fox")
	require.NoError(t, err)
	calls := llm.CallCount()

	second, err := h.Generate(context.Background(), "a fable about a fox")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, llm.CallCount())
}

func TestRunBatchWritesResults(t *testing.T) {
	llm := model.NewMockModel("m").Respond(func(model.Request) (string, error) { return atomicStory, nil })
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "data/in.jsonl", []byte(
		`{"id": "s1", "ori": {"inputs": "a fable"}}`+"\n"+`{"id": "s2", "ori": {"inputs": "a myth"}}`+"\n"), 0o644))
	h := newTestHypergen(t, llm, fsys)

	sum, err := h.RunBatch(context.Background(), "data/in.jsonl", "data/out.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)

	out, err := afero.ReadFile(fsys, "data/out.jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Once upon a time.", gjson.Get(lines[1], "result").String())

	data, err := afero.ReadFile(fsys, "records/s2/engine.log")
	require.NoError(t, err)
	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		msgs = append(msgs, gjson.Get(line, "msg").String())
	}
	assert.Contains(t, msgs, "Action completed")
	assert.Contains(t, msgs, "LLM call completed")
	assert.Contains(t, msgs, "Item run completed")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := storyConfig()
	cfg.Engine.MaxSteps = 0
	_, err := New(func(o *Options) {
		o.Config = cfg
		o.Model = model.NewMockModel("m")
	})
	assert.Error(t, err)
}

func TestNewModelProviders(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic", "mock"} {
		m, err := NewModel(config.ModelConfig{Provider: provider, Name: "x", APIKey: "k"})
		require.NoError(t, err, provider)
		assert.NotNil(t, m)
	}
	_, err := NewModel(config.ModelConfig{Provider: "other", Name: "x"})
	assert.Error(t, err)
}
