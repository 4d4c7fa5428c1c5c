// Package reconcile keeps locally stored calendar events consistent with
// an external calendar source.
//
// One reconciliation pass is fetch -> diff -> apply:
//
//  1. Fetch incoming events and participants for a bounded date range.
//     Fetching happens outside any store transaction and may be cancelled;
//     a failed or cancelled fetch aborts the pass with the store untouched.
//  2. ComputeDiff matches existing local rows against the incoming set by
//     identity key and produces to_add / to_update / to_delete.
//  3. Apply executes the diff, refreshes embedded session-event snapshots
//     and reconciles participants, all inside one store transaction.
//
// Identity keys: a non-recurring event is identified by its tracking id
// alone. Occurrences of a recurring series share a tracking id, so they
// key on (tracking id, day of started_at) instead.
//
// The pass is idempotent: applying the same incoming set twice produces an
// empty diff the second time.
package reconcile
