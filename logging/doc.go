// Package logging provides a minimal logging interface and adapters for hypergen.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, agents and search pipeline use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - RunLogger with run/item context and domain helpers
//   - Tee for writing one stream to several loggers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Component: "engine"})
//	eng := engine.New(root, proxy, func(o *engine.Options) { o.Logger = logger })
//
// Arguments are always slog key/value pairs: logger.Info("select node", "node", id).
package logging
