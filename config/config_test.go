package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zhiyu/hypergen/core"
)

func TestPresetsAreValid(t *testing.T) {
	for _, c := range []Config{Story(), Report()} {
		require.NoError(t, c.Validate(), c.Mode)
	}
}

func TestReportPreset(t *testing.T) {
	c := Report()
	assert.True(t, c.Search.Enabled)
	assert.True(t, c.Search.LLMMerge)
	assert.Equal(t, 3, c.Tasks.Composition.ForceAtomLayer)
	assert.True(t, c.Tasks.Search.AllAtom)
	assert.True(t, c.Tasks.Search.OnlyOnDepend)
	assert.Equal(t, 10, c.Retry.Atom)
	assert.Equal(t, 50, c.Retry.Execute)
	assert.Equal(t, 10000, c.Engine.MaxSteps)
}

func TestStoryPreset(t *testing.T) {
	c := Story()
	assert.False(t, c.Search.Enabled)
	assert.True(t, c.Tasks.Analysis.UseCandidatePlan)
	assert.Equal(t, AggregateLLM, c.Tasks.Analysis.Aggregate)
	assert.Equal(t, c.Tasks.Analysis, c.Tasks.For(core.TaskTypeAnalysis))
	assert.Equal(t, c.Tasks.Composition, c.Tasks.For(core.TaskTypeComposition))
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeReport, c.Mode)
	assert.Equal(t, 15*time.Second, c.Search.FetchTimeout)
	assert.Equal(t, 20, c.Search.TopK)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hypergen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: story
model:
  name: claude-sonnet
  provider: anthropic
tasks:
  composition:
    force_atom_layer: 2
`), 0o644))
	t.Setenv("HYPERGEN_ENGINE_MAX_STEPS", "42")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeStory, c.Mode)
	assert.Equal(t, "anthropic", c.Model.Provider)
	assert.Equal(t, "claude-sonnet", c.Model.Name)
	assert.Equal(t, 2, c.Tasks.Composition.ForceAtomLayer)
	// Untouched keys keep the story preset.
	assert.True(t, c.Tasks.Composition.UpdateOnAtom)
	assert.Equal(t, AggregateLLM, c.Tasks.Analysis.Aggregate)
	assert.Equal(t, 42, c.Engine.MaxSteps)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: poem\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"provider":  func(c *Config) { c.Model.Provider = "llama" },
		"name":      func(c *Config) { c.Model.Name = " " },
		"steps":     func(c *Config) { c.Engine.MaxSteps = 0 },
		"search":    func(c *Config) { c.Search.Provider = "bing" },
		"aggregate": func(c *Config) { c.Tasks.Analysis.Aggregate = "vote" },
		"redis":     func(c *Config) { c.Cache.Backend = "redis" },
		"backend":   func(c *Config) { c.Cache.Backend = "s3" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Report()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	c := Report()
	c.Model.APIKey = "sk-secret"
	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf))
	assert.NotContains(t, buf.String(), "sk-secret")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "report", back["mode"])
}
