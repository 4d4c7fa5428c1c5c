// Package calsource implements the external calendar fetchers consumed by
// the reconciliation engine.
//
// Two sources are provided: Google Calendar through its REST API and any
// CalDAV server (iCloud, Fastmail, Radicale). Both normalize their wire
// formats into reconcile.IncomingEvent values keyed by the source's stable
// event identity, and wrap every transport failure in a
// reconcile.FetchError so a failed pass leaves the store untouched.
package calsource
