// Package testutils provides helpers shared by tests: a migrated SQLite
// database per test, an opt-in Postgres database, fixture inserts, and a
// capturing slog handler.
package testutils
