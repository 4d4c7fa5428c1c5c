// Package migrate brings stored data up to the current shape at startup.
//
// Every step runs inside one transaction and is a no-op on current-shape
// data, so the runner is safe to execute on every launch. Steps are
// strictly ordered:
//
//  1. seed a default user id and a welcome session into an empty store
//  2. fold the legacy per-event ignore flag into the ignored-events value
//  3. rewrite the legacy session event linkage as an embedded snapshot
//  4. upgrade the ignored-series value from a plain id list to records
//
// ImportLegacyDatabase additionally extracts sessions and events from the
// pre-file-collection SQLite database; its rows are applied by Run only
// when the store holds no data of its own.
package migrate
