package migrate

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
	"github.com/hurajgor/hyprnote/internal/testutil"
)

func newTestRunner(t *testing.T) (*Runner, *rowstore.Store) {
	t.Helper()
	store := rowstore.New()
	require.NoError(t, model.RegisterIndexes(store))

	r := NewRunner(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Now = testutil.NewFixedClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)).Now
	n := 0
	r.NewID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	return r, store
}

func setEventRow(t *testing.T, store *rowstore.Store, e model.Event, extra rowstore.Row) {
	t.Helper()
	row := e.Row()
	for k, v := range extra {
		row[k] = v
	}
	require.NoError(t, store.SetRow(model.TableEvents, e.ID, row))
}

func TestRun_SeedsEmptyStore(t *testing.T) {
	r, store := newTestRunner(t)
	require.NoError(t, r.Run(nil))

	uid, ok := store.GetValue(model.ValueUserID)
	require.True(t, ok)
	assert.Equal(t, "gen-1", uid)

	ids := store.RowIDs(model.TableSessions)
	require.Len(t, ids, 1)
	s := model.SessionFromRow(ids[0], store.GetRow(model.TableSessions, ids[0]))
	assert.Equal(t, "Welcome", s.Title)
	assert.Equal(t, "gen-1", s.UserID)
	assert.Equal(t, "2024-03-01T00:00:00Z", s.CreatedAt)
	assert.NotEmpty(t, s.RawMD)
}

func TestRun_SeedIsNoOpWhenDataExists(t *testing.T) {
	r, store := newTestRunner(t)
	require.NoError(t, r.Run(nil))

	version := store.Version()
	require.NoError(t, r.Run(nil))
	assert.Equal(t, version, store.Version())
	assert.Len(t, store.RowIDs(model.TableSessions), 1)
}

func TestRun_FoldsIgnoredFlags(t *testing.T) {
	r, store := newTestRunner(t)
	recurring := true
	plain := false

	setEventRow(t, store, model.Event{
		ID: "e1", TrackingID: "t1", StartedAt: "2024-01-15T10:00:00Z", HasRecurrenceRules: &plain,
	}, rowstore.Row{"ignored": true})
	setEventRow(t, store, model.Event{
		ID: "e2", TrackingID: "t2", StartedAt: "2024-02-01T09:00:00Z", HasRecurrenceRules: &recurring,
	}, rowstore.Row{"ignored": true})
	setEventRow(t, store, model.Event{
		ID: "e3", TrackingID: "t3", StartedAt: "2024-02-02T09:00:00Z",
		HasRecurrenceRules: &recurring, RecurrenceSeriesID: "series-1",
	}, rowstore.Row{"ignored": true})
	setEventRow(t, store, model.Event{
		ID: "e4", TrackingID: "t4", StartedAt: "2024-02-03T09:00:00Z", HasRecurrenceRules: &plain,
	}, rowstore.Row{"ignored": false})

	series, err := model.EncodeIgnoredSeries([]model.IgnoredSeries{
		{ID: "series-1", LastSeen: "2024-01-01T00:00:00Z"},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetValue(model.ValueIgnoredSeries, series))

	// t1 is already ignored with an earlier timestamp; that entry wins.
	preexisting, err := model.EncodeIgnoredEvents([]model.IgnoredEvent{
		{TrackingID: "t1", LastSeen: "2023-06-01T00:00:00Z"},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetValue(model.ValueIgnoredEvents, preexisting))

	require.NoError(t, r.Run(nil))

	for _, id := range store.RowIDs(model.TableEvents) {
		_, ok := store.GetCell(model.TableEvents, id, "ignored")
		assert.False(t, ok, "event %s still carries the legacy flag", id)
	}

	raw, ok := store.GetValue(model.ValueIgnoredEvents)
	require.True(t, ok)
	assert.Equal(t, []model.IgnoredEvent{
		{TrackingID: "t1", LastSeen: "2023-06-01T00:00:00Z"},
		{TrackingID: "t2", Day: "2024-02-01", LastSeen: "2024-03-01T00:00:00Z"},
	}, model.DecodeIgnoredEvents(raw))

	// Idempotence: a second run leaves the value byte-identical.
	require.NoError(t, r.Run(nil))
	again, _ := store.GetValue(model.ValueIgnoredEvents)
	assert.Equal(t, raw, again)
}

func TestRun_RewritesLegacyEventLinks(t *testing.T) {
	r, store := newTestRunner(t)
	plain := false

	setEventRow(t, store, model.Event{
		ID: "e1", TrackingID: "t-row", CalendarID: "cal-1",
		Title: "By row id", StartedAt: "2024-01-15T10:00:00Z", HasRecurrenceRules: &plain,
	}, nil)
	setEventRow(t, store, model.Event{
		ID: "e2", TrackingID: "t-track", CalendarID: "cal-2",
		Title: "By tracking id", StartedAt: "2024-01-16T10:00:00Z", HasRecurrenceRules: &plain,
	}, nil)

	snapshot, err := model.EncodeSessionEvent(model.SessionEvent{
		TrackingID: "t-row", Title: "Already migrated", StartedAt: "2024-01-15T10:00:00Z",
	})
	require.NoError(t, err)

	for id, s := range map[string]model.Session{
		"s1": {ID: "s1", LegacyEventID: "e1"},
		"s2": {ID: "s2", LegacyEventID: "t-track"},
		"s3": {ID: "s3", LegacyEventID: "missing"},
		"s4": {ID: "s4", Event: snapshot, LegacyEventID: "e1"},
	} {
		require.NoError(t, store.SetRow(model.TableSessions, id, s.Row()))
	}

	require.NoError(t, r.Run(nil))

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		_, ok := store.GetCell(model.TableSessions, id, "event_id")
		assert.False(t, ok, "session %s still carries event_id", id)
	}

	s1 := model.SessionFromRow("s1", store.GetRow(model.TableSessions, "s1"))
	se, ok := model.DecodeSessionEvent(s1.Event)
	require.True(t, ok)
	assert.Equal(t, "t-row", se.TrackingID)
	assert.Equal(t, "cal-1", se.CalendarID)
	assert.Equal(t, "By row id", se.Title)

	s2 := model.SessionFromRow("s2", store.GetRow(model.TableSessions, "s2"))
	se, ok = model.DecodeSessionEvent(s2.Event)
	require.True(t, ok)
	assert.Equal(t, "t-track", se.TrackingID)
	assert.Equal(t, "cal-2", se.CalendarID)

	s3 := model.SessionFromRow("s3", store.GetRow(model.TableSessions, "s3"))
	assert.Equal(t, "", s3.Event)

	s4 := model.SessionFromRow("s4", store.GetRow(model.TableSessions, "s4"))
	assert.Equal(t, snapshot, s4.Event)
}

func TestRun_UpgradesIgnoredSeriesList(t *testing.T) {
	r, store := newTestRunner(t)
	require.NoError(t, store.SetValue(model.ValueIgnoredSeries, `["series-1","series-2"]`))

	require.NoError(t, r.Run(nil))

	raw, ok := store.GetValue(model.ValueIgnoredSeries)
	require.True(t, ok)
	assert.Equal(t, []model.IgnoredSeries{
		{ID: "series-1", LastSeen: "2024-03-01T00:00:00Z"},
		{ID: "series-2", LastSeen: "2024-03-01T00:00:00Z"},
	}, model.DecodeIgnoredSeries(raw))
}

func TestRun_CurrentSeriesShapeStaysByteIdentical(t *testing.T) {
	r, store := newTestRunner(t)
	current, err := model.EncodeIgnoredSeries([]model.IgnoredSeries{
		{ID: "series-1", LastSeen: "2024-01-01T00:00:00Z"},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetValue(model.ValueIgnoredSeries, current))

	require.NoError(t, r.Run(nil))

	raw, _ := store.GetValue(model.ValueIgnoredSeries)
	assert.Equal(t, current, raw)
}
