package model

import "github.com/hurajgor/hyprnote/internal/rowstore"

// Table names.
const (
	TableSessions      = "sessions"
	TableEvents        = "events"
	TableParticipants  = "participants"
	TableTags          = "tags"
	TableTranscripts   = "transcripts"
	TableEnhancedNotes = "enhanced_notes"
)

// Keyed store values.
const (
	ValueUserID        = "user_id"
	ValueIgnoredEvents = "ignored_events"
	ValueIgnoredSeries = "ignored_recurring_series"
)

// Secondary index names.
const (
	IndexParticipantsBySession = "participants_by_session"
	IndexTagsBySession         = "tags_by_session"
	IndexTranscriptsBySession  = "transcripts_by_session"
	IndexEnhancedBySession     = "enhanced_notes_by_session"
	IndexEventsByTracking      = "events_by_tracking_id"
)

// RegisterIndexes declares every secondary index the core relies on.
// Call once right after constructing the store.
func RegisterIndexes(s *rowstore.Store) error {
	for _, ix := range []struct{ name, table, cell string }{
		{IndexParticipantsBySession, TableParticipants, "session_id"},
		{IndexTagsBySession, TableTags, "session_id"},
		{IndexTranscriptsBySession, TableTranscripts, "session_id"},
		{IndexEnhancedBySession, TableEnhancedNotes, "session_id"},
		{IndexEventsByTracking, TableEvents, "tracking_id_event"},
	} {
		if err := s.RegisterIndex(ix.name, ix.table, ix.cell); err != nil {
			return err
		}
	}
	return nil
}
