// Package store defines interfaces for task and user persistence.
// These interfaces keep services and views independent of the database
// in use; internal/platform/postgres implements them for both Postgres and
// the embedded SQLite database.
package store
