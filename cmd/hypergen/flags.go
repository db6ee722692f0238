package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zhiyu/hypergen/config"
)

// addOverrideFlags registers the flags that override single config keys.
func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "story or report")
	cmd.Flags().String("model", "", "model name")
	cmd.Flags().String("provider", "", "openai, anthropic or mock")
	cmd.Flags().Bool("search", false, "enable web search")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// loadConfig reads --config and applies every override flag that was set.
// --mode selects the preset through the environment, so it also wins over
// the mode named in the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		mode, _ := flags.GetString("mode")
		if err := os.Setenv(config.EnvPrefix+"_MODE", mode); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if flags.Changed("model") {
		cfg.Model.Name, _ = flags.GetString("model")
	}
	if flags.Changed("provider") {
		cfg.Model.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("search") {
		cfg.Search.Enabled, _ = flags.GetBool("search")
	}
	if flags.Changed("metrics-addr") {
		cfg.Engine.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	return cfg, cfg.Validate()
}
