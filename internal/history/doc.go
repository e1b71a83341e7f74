// Package history records batches and their jobs in a SQLite database so
// past runs can be listed and inspected after the process exits.
//
// The store uses modernc.org/sqlite (pure Go) in WAL mode. Writes retry on
// SQLITE_BUSY, which happens when a `mixtape history` reader overlaps a
// running batch.
package history
