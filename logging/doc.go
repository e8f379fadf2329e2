// Package logging provides the minimal logging interface used across the
// module together with adapters for structured loggers.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that runners, the fan-out coordinator and tools use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping log/slog (New builds a JSON or text handler)
//   - ZapAdapter wrapping a zap SugaredLogger (used by the CLI)
//   - NoOpLogger for silent operation (tests, library defaults)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "json"})
//	r := runner.New(m, func(o *runner.Options) { o.Logger = logger })
//
// Messages follow a dotted event naming scheme ("runner.turn.start") with
// key/value pairs for context.
package logging
