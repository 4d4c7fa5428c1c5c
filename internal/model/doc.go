// Package model defines the entities shared by the store, persister,
// reconciler and migrations: sessions, calendar events, embedded session
// event snapshots, participants, tags, transcripts, enhanced notes and the
// ignored-event bookkeeping values.
//
// Rows in the store hold JSON scalar cells only, so every entity here knows
// how to convert itself to and from a rowstore.Row. Timestamps are RFC 3339
// strings, matching the on-disk documents.
package model
