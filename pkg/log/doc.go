// Package log provides workstalkd's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Entries are rendered by the package's
// own Formatter implementations and written to its Outputs. A thin
// log/slog bridge handler routes records logged through slog, or through
// the standard log package via RedirectStdLog and ToStdLogger, into that
// same pipeline, behind a stable, dependency-injectable facade for the
// rest of the codebase to hold.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("engine"))
//	l.Info("server started", log.Int("port", 11300))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level + format).
//
// There is no global/default logger: every component takes a Logger via
// constructor injection, matching how the rest of workstalkd avoids
// package-level mutable state.
package log
