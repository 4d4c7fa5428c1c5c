package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurajgor/hyprnote/internal/rowstore"
)

func boolPtr(b bool) *bool { return &b }

func TestEventKey(t *testing.T) {
	testCases := []struct {
		name       string
		trackingID string
		startedAt  string
		recurring  bool
		want       string
	}{
		{"non-recurring ignores day", "t1", "2024-01-15T10:00:00Z", false, "t1"},
		{"recurring keys on day", "t1", "2024-01-15T10:00:00Z", true, "t1\n2024-01-15"},
		{"recurring other day", "t1", "2024-01-22T10:00:00Z", true, "t1\n2024-01-22"},
		{"recurring missing start falls back to epoch", "t1", "", true, "t1\n1970-01-01"},
		{"recurring short start falls back to epoch", "t1", "2024", true, "t1\n1970-01-01"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EventKey(tc.trackingID, tc.startedAt, tc.recurring))
		})
	}
}

func TestEventRowRoundTrip(t *testing.T) {
	e := Event{
		ID:                 "e1",
		UserID:             "u1",
		CreatedAt:          "2024-01-01T00:00:00Z",
		TrackingID:         "t1",
		CalendarID:         "c1",
		Title:              "Weekly sync",
		StartedAt:          "2024-01-15T10:00:00Z",
		EndedAt:            "2024-01-15T11:00:00Z",
		IsAllDay:           false,
		HasRecurrenceRules: boolPtr(true),
		RecurrenceSeriesID: "series-1",
		Location:           "Room 42",
		MeetingLink:        "https://meet.example.com",
		Description:        "notes",
	}

	got := EventFromRow("e1", e.Row())
	assert.Equal(t, e, got)
}

func TestEventFromRow_LegacyRecurrenceUnknown(t *testing.T) {
	e := EventFromRow("e1", rowstore.Row{
		"tracking_id_event": "t1",
		"title":             "Legacy",
	})
	assert.Nil(t, e.HasRecurrenceRules)
	assert.False(t, e.Recurring())
	assert.Equal(t, "t1", e.Key())
}

func TestSessionEventEncodeDecode(t *testing.T) {
	se := SessionEvent{
		TrackingID:         "t1",
		CalendarID:         "cal-local-1",
		Title:              "Weekly sync",
		StartedAt:          "2024-01-15T10:00:00Z",
		EndedAt:            "2024-01-15T11:00:00Z",
		HasRecurrenceRules: true,
		RecurrenceSeriesID: "series-1",
	}

	cell, err := EncodeSessionEvent(se)
	require.NoError(t, err)

	got, ok := DecodeSessionEvent(cell)
	require.True(t, ok)
	assert.Equal(t, se, got)
	assert.Equal(t, "t1\n2024-01-15", got.Key())
}

func TestDecodeSessionEvent_RejectsLegacyShapes(t *testing.T) {
	for _, cell := range []string{"", "evt_123", `"evt_123"`, "{}", "[1,2]"} {
		_, ok := DecodeSessionEvent(cell)
		assert.False(t, ok, "cell %q", cell)
	}
}

func TestSnapshotOf(t *testing.T) {
	e := Event{
		TrackingID:         "t1",
		CalendarID:         "upstream-cal",
		Title:              "Sync",
		StartedAt:          "2024-01-15T10:00:00Z",
		HasRecurrenceRules: boolPtr(false),
	}
	se := SnapshotOf(e, "cal-local-1")
	assert.Equal(t, "cal-local-1", se.CalendarID)
	assert.Equal(t, "Sync", se.Title)
	assert.False(t, se.HasRecurrenceRules)
}

func TestIgnoredEventKey(t *testing.T) {
	assert.Equal(t, "t1", IgnoredEvent{TrackingID: "t1"}.Key())
	assert.Equal(t, "t1\n2024-01-15", IgnoredEvent{TrackingID: "t1", Day: "2024-01-15"}.Key())
}

func TestIgnoredListsRoundTrip(t *testing.T) {
	events := []IgnoredEvent{
		{TrackingID: "t1", Day: "2024-01-15", LastSeen: "2024-01-20T00:00:00Z"},
		{TrackingID: "t2", LastSeen: "2024-01-20T00:00:00Z"},
	}
	s, err := EncodeIgnoredEvents(events)
	require.NoError(t, err)
	assert.Equal(t, events, DecodeIgnoredEvents(s))

	series := []IgnoredSeries{{ID: "series-1", LastSeen: "2024-01-20T00:00:00Z"}}
	s, err = EncodeIgnoredSeries(series)
	require.NoError(t, err)
	assert.Equal(t, series, DecodeIgnoredSeries(s))
}

func TestDecodeIgnoredEvents_Lenient(t *testing.T) {
	assert.Nil(t, DecodeIgnoredEvents(nil))
	assert.Nil(t, DecodeIgnoredEvents(float64(3)))
	assert.Nil(t, DecodeIgnoredEvents("not json"))
}
