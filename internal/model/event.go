package model

import (
	"encoding/json"

	"github.com/hurajgor/hyprnote/internal/rowstore"
)

// fallbackDay keys events whose start timestamp is missing or unusable, so
// they still participate in matching instead of failing the pass.
const fallbackDay = "1970-01-01"

// Event is a locally stored calendar occurrence. Created, updated and
// deleted only by the reconciler; read by the UI and session creation.
//
// HasRecurrenceRules is tri-state: nil means the row predates the
// recurrence flag and its identity key must be probed both ways.
type Event struct {
	ID                 string
	UserID             string
	CreatedAt          string
	TrackingID         string
	CalendarID         string
	Title              string
	StartedAt          string
	EndedAt            string
	IsAllDay           bool
	HasRecurrenceRules *bool
	RecurrenceSeriesID string
	Location           string
	MeetingLink        string
	Description        string
}

// Recurring reports the recurrence flag, treating unknown as false.
func (e Event) Recurring() bool {
	return e.HasRecurrenceRules != nil && *e.HasRecurrenceRules
}

// Key returns the identity key for the event's current recurrence flag.
// Unknown-flag rows must use EventKey directly with both probes instead.
func (e Event) Key() string {
	return EventKey(e.TrackingID, e.StartedAt, e.Recurring())
}

// EventKey computes the identity key used to match local events against
// incoming ones. Non-recurring events are identified by tracking id alone.
// An occurrence of a recurring series is only distinguishable by its day,
// so recurring events key on (tracking id, day of started_at).
func EventKey(trackingID, startedAt string, recurring bool) string {
	if !recurring {
		return trackingID
	}
	return trackingID + "\n" + DayOf(startedAt)
}

// DayOf extracts the YYYY-MM-DD prefix of an RFC 3339 timestamp, falling
// back to the epoch day when the timestamp is too short to carry one.
func DayOf(startedAt string) string {
	if len(startedAt) >= 10 {
		return startedAt[:10]
	}
	return fallbackDay
}

// EventFromRow rebuilds an Event from its row. A missing
// has_recurrence_rules cell is preserved as nil.
func EventFromRow(id string, row rowstore.Row) Event {
	e := Event{
		ID:                 id,
		UserID:             strCell(row, "user_id"),
		CreatedAt:          strCell(row, "created_at"),
		TrackingID:         strCell(row, "tracking_id_event"),
		CalendarID:         strCell(row, "calendar_id"),
		Title:              strCell(row, "title"),
		StartedAt:          strCell(row, "started_at"),
		EndedAt:            strCell(row, "ended_at"),
		IsAllDay:           boolCell(row, "is_all_day"),
		RecurrenceSeriesID: strCell(row, "recurrence_series_id"),
		Location:           strCell(row, "location"),
		MeetingLink:        strCell(row, "meeting_link"),
		Description:        strCell(row, "description"),
	}
	if v, ok := row["has_recurrence_rules"]; ok {
		if b, ok := v.(bool); ok {
			e.HasRecurrenceRules = &b
		}
	}
	return e
}

// Row converts the event to its stored cell map. Optional string fields are
// written only when present; a nil recurrence flag stays absent.
func (e Event) Row() rowstore.Row {
	row := rowstore.Row{
		"user_id":           e.UserID,
		"created_at":        e.CreatedAt,
		"tracking_id_event": e.TrackingID,
		"calendar_id":       e.CalendarID,
		"title":             e.Title,
		"started_at":        e.StartedAt,
		"ended_at":          e.EndedAt,
		"is_all_day":        e.IsAllDay,
	}
	if e.HasRecurrenceRules != nil {
		row["has_recurrence_rules"] = *e.HasRecurrenceRules
	}
	for cell, v := range map[string]string{
		"recurrence_series_id": e.RecurrenceSeriesID,
		"location":             e.Location,
		"meeting_link":         e.MeetingLink,
		"description":          e.Description,
	} {
		if v != "" {
			row[cell] = v
		}
	}
	return row
}

// SessionEvent is the denormalized snapshot of an event inlined into a
// session row. It has no identity of its own and is rewritten wholesale
// whenever its source event changes.
//
// Invariant: the snapshot may be stale relative to the events table until
// the next reconciliation pass. That is by contract - a session must keep
// rendering its event context even after the source event row is deleted.
type SessionEvent struct {
	TrackingID         string `json:"tracking_id"`
	CalendarID         string `json:"calendar_id"`
	Title              string `json:"title"`
	StartedAt          string `json:"started_at"`
	EndedAt            string `json:"ended_at"`
	IsAllDay           bool   `json:"is_all_day"`
	HasRecurrenceRules bool   `json:"has_recurrence_rules"`
	Location           string `json:"location,omitempty"`
	MeetingLink        string `json:"meeting_link,omitempty"`
	Description        string `json:"description,omitempty"`
	RecurrenceSeriesID string `json:"recurrence_series_id,omitempty"`
}

// Key returns the snapshot's identity key.
func (se SessionEvent) Key() string {
	return EventKey(se.TrackingID, se.StartedAt, se.HasRecurrenceRules)
}

// SnapshotOf builds the session snapshot for an event, with the calendar id
// resolved by the caller (empty when the calendar is not known locally).
func SnapshotOf(e Event, calendarID string) SessionEvent {
	return SessionEvent{
		TrackingID:         e.TrackingID,
		CalendarID:         calendarID,
		Title:              e.Title,
		StartedAt:          e.StartedAt,
		EndedAt:            e.EndedAt,
		IsAllDay:           e.IsAllDay,
		HasRecurrenceRules: e.Recurring(),
		Location:           e.Location,
		MeetingLink:        e.MeetingLink,
		Description:        e.Description,
		RecurrenceSeriesID: e.RecurrenceSeriesID,
	}
}

// EncodeSessionEvent serializes the snapshot for storage in a session cell.
func EncodeSessionEvent(se SessionEvent) (string, error) {
	b, err := json.Marshal(se)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSessionEvent parses a stored snapshot cell. Returns false for
// anything that does not parse as a snapshot object, including the legacy
// bare-id linkage.
func DecodeSessionEvent(cell string) (SessionEvent, bool) {
	var se SessionEvent
	if err := json.Unmarshal([]byte(cell), &se); err != nil {
		return SessionEvent{}, false
	}
	if se.TrackingID == "" {
		return SessionEvent{}, false
	}
	return se, true
}

func strCell(row rowstore.Row, cell string) string {
	s, _ := row[cell].(string)
	return s
}

func boolCell(row rowstore.Row, cell string) bool {
	b, _ := row[cell].(bool)
	return b
}
