package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hurajgor/hyprnote/internal/model"
)

// IncomingEvent is one freshly fetched calendar occurrence, already
// translated into provider-independent form by the calendar source.
// Timestamps are RFC 3339 strings.
type IncomingEvent struct {
	TrackingIDEvent    string
	TrackingIDCalendar string
	Title              string
	StartedAt          string
	EndedAt            string
	IsAllDay           bool
	HasRecurrenceRules bool
	RecurrenceSeriesID string
	Location           string
	MeetingLink        string
	Description        string
}

// Key returns the incoming event's identity key.
func (in IncomingEvent) Key() string {
	return model.EventKey(in.TrackingIDEvent, in.StartedAt, in.HasRecurrenceRules)
}

// IncomingParticipant is one attendee of an incoming event.
type IncomingParticipant struct {
	EventTrackingID string
	Name            string
	Email           string
}

// FetchRequest bounds one fetch: a date range and the calendars to read.
type FetchRequest struct {
	From        time.Time
	To          time.Time
	CalendarIDs []string
}

// FetchResult is the well-formed payload a calendar source returns.
type FetchResult struct {
	Events       []IncomingEvent
	Participants []IncomingParticipant
}

// Fetcher reads events from an external calendar source. Implementations
// must honor ctx cancellation and wrap provider failures in *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// FetchError distinguishes an external fetch failure from everything else.
// It aborts only the current pass, leaves the store untouched and is
// surfaced to the caller for retry scheduling.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("calendar fetch from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
