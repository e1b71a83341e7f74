// Package logging assembles structured zap loggers and field helpers used
// across mixtape components.
//
// It owns the console/JSON encoders, routes file output through a rotating
// writer, and exposes context-aware helpers so pipeline code can tag log lines
// with batch IDs, job indexes, and stage names. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
