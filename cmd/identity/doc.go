// Package identity owns durable account records and their stored credentials.
//
// The Store interface is the persistence boundary used by the account flows.
// Three implementations ship with the package: an in-memory store for tests
// and local runs, PostgreSQL over a pgx pool, and SQLite via modernc.org/sqlite.
// Schemas are embedded goose migrations applied at startup.
//
// Credentials cross this boundary only as password.Encoded values.
package identity
