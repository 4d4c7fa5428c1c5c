package calsource

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func icalEvent(t *testing.T, uid, summary string, start, end time.Time) ical.Event {
	t.Helper()
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, uid)
	ev.Props.SetText(ical.PropSummary, summary)
	ev.Props.SetDateTime(ical.PropDateTimeStart, start)
	ev.Props.SetDateTime(ical.PropDateTimeEnd, end)
	return *ev
}

func TestIncomingFromICal_SingleEvent(t *testing.T) {
	ev := icalEvent(t, "uid-1", "Design review",
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC))
	ev.Props.SetText(ical.PropLocation, "Room 3")

	got, err := incomingFromICal(ev, "/calendars/work/",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[0]
	assert.Equal(t, "uid-1", e.TrackingIDEvent)
	assert.Equal(t, "/calendars/work/", e.TrackingIDCalendar)
	assert.Equal(t, "Design review", e.Title)
	assert.Equal(t, "2024-01-15T10:00:00Z", e.StartedAt)
	assert.Equal(t, "2024-01-15T11:00:00Z", e.EndedAt)
	assert.Equal(t, "Room 3", e.Location)
	assert.False(t, e.HasRecurrenceRules)
}

func TestIncomingFromICal_ExpandsRecurrence(t *testing.T) {
	ev := icalEvent(t, "uid-1", "Weekly sync",
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	rule := ical.NewProp(ical.PropRecurrenceRule)
	rule.Value = "FREQ=WEEKLY;COUNT=3"
	ev.Props.Add(rule)

	got, err := incomingFromICal(ev, "/calendars/work/",
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 3)

	var starts []string
	for _, e := range got {
		assert.Equal(t, "uid-1", e.TrackingIDEvent)
		assert.True(t, e.HasRecurrenceRules)
		assert.Equal(t, "uid-1", e.RecurrenceSeriesID)
		starts = append(starts, e.StartedAt)
	}
	assert.Equal(t, []string{
		"2024-01-15T10:00:00Z",
		"2024-01-22T10:00:00Z",
		"2024-01-29T10:00:00Z",
	}, starts)
	assert.Equal(t, "2024-01-22T10:30:00Z", got[1].EndedAt)
}

func TestIncomingFromICal_RecurrenceBoundedByWindow(t *testing.T) {
	ev := icalEvent(t, "uid-1", "Weekly sync",
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	rule := ical.NewProp(ical.PropRecurrenceRule)
	rule.Value = "FREQ=WEEKLY"
	ev.Props.Add(rule)

	got, err := incomingFromICal(ev, "/calendars/work/",
		time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestIncomingFromICal_MissingUID(t *testing.T) {
	ev := ical.NewEvent()
	ev.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	_, err := incomingFromICal(*ev, "/calendars/work/", time.Time{}, time.Time{})
	require.Error(t, err)
}

func TestICalParticipants(t *testing.T) {
	ev := icalEvent(t, "uid-1", "Weekly sync",
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))

	alice := ical.NewProp(ical.PropAttendee)
	alice.Value = "mailto:alice@example.com"
	alice.Params.Set(ical.ParamCommonName, "Alice")
	ev.Props.Add(alice)

	bob := ical.NewProp(ical.PropAttendee)
	bob.Value = "mailto:bob@example.com"
	ev.Props.Add(bob)

	got := icalParticipants(ev, "uid-1")
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, "alice@example.com", got[0].Email)
	assert.Equal(t, "bob@example.com", got[1].Name)
}
