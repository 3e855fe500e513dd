// Package logger provides structured logging for the application.
//
// It builds on log/slog: JSON output for machines, colored console output
// (tint) for people, a runtime-adjustable level, and helpers that carry a
// request-scoped logger through a context.Context.
package logger
