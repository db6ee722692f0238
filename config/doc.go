// Package config loads hypergen configuration with viper. Defaults come from
// the story or report preset, a YAML or JSON file overrides them, and
// HYPERGEN_* environment variables override both (HYPERGEN_SEARCH_MAX_TURN
// sets search.max_turn).
package config
