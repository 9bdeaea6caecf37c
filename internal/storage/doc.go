// Package storage is the persistence layer behind a sweep.
//
// It reads the item repository (scoped to one owner) and the account
// directory, and keeps an append-only history of sweep runs.
//
// Drivers: file (JSON files edited by the operator), sqlite (modernc, pure Go)
// and postgres (pgx pool).
package storage
