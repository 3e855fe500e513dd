// Package postgres implements the store interfaces over database/sql.
// The same queries run against PostgreSQL (pgx) and the embedded SQLite
// database; errors from either driver map to the store sentinels.
package postgres
