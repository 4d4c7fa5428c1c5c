// Package rowstore implements the in-memory relational store at the heart
// of the persistence core.
//
// The store is a table of tables: table name -> row id -> cell map. Cells
// hold JSON scalar values (string, bool, float64). Rows have no declared
// schema; the shape of a row is whatever was last written.
//
// ARCHITECTURE:
//
// Single-Writer Transactions:
// All mutations happen inside Transaction(). Transactions are serialized
// against each other and commit atomically - either every staged write is
// applied or none is. Reads inside a transaction observe that transaction's
// own staged writes.
//
// Commit Notifications:
// After a transaction commits with at least one effective change, the store
// synchronously delivers a raw [changes, meta, version] payload to every
// registered listener, in commit order. The changes element maps table ->
// row id -> cell diff (nil for a deleted row). Listeners run under the
// store lock and therefore MUST NOT touch the store; they exist to hand the
// payload off to a queue for later processing.
//
// The store is the single source of truth. The on-disk layout maintained by
// the persist package is a derived cache of it, rebuildable at any time.
package rowstore
