package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

type stubFetcher struct {
	result FetchResult
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	f.calls++
	if f.err != nil {
		return FetchResult{}, f.err
	}
	return f.result, nil
}

func testWindow() FetchRequest {
	return FetchRequest{
		From:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		CalendarIDs: []string{"c1"},
	}
}

func newTestEngine(t *testing.T, store *rowstore.Store, fetcher Fetcher) *Engine {
	t.Helper()
	e := New(store, fetcher, slog.New(slog.NewTextHandler(io.Discard, nil)), "u1")
	e.Now = func() time.Time { return time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC) }
	n := 0
	e.NewID = func() string {
		n++
		return fmt.Sprintf("local-%d", n)
	}
	return e
}

func newStore(t *testing.T) *rowstore.Store {
	t.Helper()
	s := rowstore.New()
	require.NoError(t, model.RegisterIndexes(s))
	return s
}

func TestRunPass_AddsEventWithResolvedCalendar(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{result: FetchResult{Events: []IncomingEvent{{
		TrackingIDEvent:    "t1",
		TrackingIDCalendar: "c1",
		Title:              "Planning",
		StartedAt:          "2024-01-15T10:00:00Z",
	}}}}

	e := newTestEngine(t, store, fetcher)
	mapping, err := e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t1": "local-1"}, mapping)

	row := store.GetRow(model.TableEvents, "local-1")
	require.NotNil(t, row)
	ev := model.EventFromRow("local-1", row)
	assert.Equal(t, "cal-local-1", ev.CalendarID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "Planning", ev.Title)
	assert.Equal(t, "2024-01-20T12:00:00Z", ev.CreatedAt)
}

func TestRunPass_Idempotent(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{result: FetchResult{Events: []IncomingEvent{
		{TrackingIDEvent: "t1", TrackingIDCalendar: "c1", Title: "Planning", StartedAt: "2024-01-15T10:00:00Z"},
		{TrackingIDEvent: "t2", TrackingIDCalendar: "c1", Title: "Retro", StartedAt: "2024-01-16T10:00:00Z", HasRecurrenceRules: true},
	}}}
	calendars := map[string]string{"c1": "cal-local-1"}

	e := newTestEngine(t, store, fetcher)
	mapping, err := e.RunPass(context.Background(), testWindow(), calendars)
	require.NoError(t, err)
	require.Len(t, mapping, 2)
	versionAfterFirst := store.Version()
	assert.Len(t, store.RowIDs(model.TableEvents), 2)

	// Second pass with identical incoming: same rows, same mapping, and
	// nothing committed - every merge writes identical content.
	again, err := e.RunPass(context.Background(), testWindow(), calendars)
	require.NoError(t, err)
	assert.Equal(t, mapping, again)
	assert.Len(t, store.RowIDs(model.TableEvents), 2)
	assert.Equal(t, versionAfterFirst, store.Version())
}

func TestRunPass_UpdatePreservesIdentityFields(t *testing.T) {
	store := newStore(t)
	existing := model.Event{
		ID:         "e1",
		UserID:     "original-user",
		CreatedAt:  "2023-12-01T00:00:00Z",
		CalendarID: "cal-local-1",
		TrackingID: "t1",
		Title:      "Old title",
		StartedAt:  "2024-01-15T09:00:00Z",
	}
	existing.HasRecurrenceRules = boolPtr(false)
	require.NoError(t, store.SetRow(model.TableEvents, "e1", existing.Row()))

	fetcher := &stubFetcher{result: FetchResult{Events: []IncomingEvent{{
		TrackingIDEvent:    "t1",
		TrackingIDCalendar: "c1",
		Title:              "New title",
		StartedAt:          "2024-01-15T10:00:00Z",
		Location:           "Room 1",
	}}}}

	e := newTestEngine(t, store, fetcher)
	mapping, err := e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t1": "e1"}, mapping)

	ev := model.EventFromRow("e1", store.GetRow(model.TableEvents, "e1"))
	assert.Equal(t, "New title", ev.Title)
	assert.Equal(t, "Room 1", ev.Location)
	assert.Equal(t, "2024-01-15T10:00:00Z", ev.StartedAt)
	// Identity fields survive the merge.
	assert.Equal(t, "original-user", ev.UserID)
	assert.Equal(t, "2023-12-01T00:00:00Z", ev.CreatedAt)
	assert.Equal(t, "cal-local-1", ev.CalendarID)
}

func TestRunPass_DeletesVanishedEventsInsideWindowOnly(t *testing.T) {
	store := newStore(t)
	inWindow := existingAt("e1", "t1", "2024-01-15T10:00:00Z", boolPtr(false))
	outside := existingAt("e2", "t2", "2023-06-01T10:00:00Z", boolPtr(false))
	require.NoError(t, store.SetRow(model.TableEvents, "e1", inWindow.Row()))
	require.NoError(t, store.SetRow(model.TableEvents, "e2", outside.Row()))

	fetcher := &stubFetcher{result: FetchResult{}}
	e := newTestEngine(t, store, fetcher)
	_, err := e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	require.NoError(t, err)

	assert.Nil(t, store.GetRow(model.TableEvents, "e1"))
	assert.NotNil(t, store.GetRow(model.TableEvents, "e2"))
}

func TestRunPass_FetchErrorLeavesStoreUntouched(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SetRow(model.TableEvents, "e1",
		existingAt("e1", "t1", "2024-01-15T10:00:00Z", boolPtr(false)).Row()))
	version := store.Version()

	fetchErr := &FetchError{Source: "google", Err: errors.New("503")}
	e := newTestEngine(t, store, &stubFetcher{err: fetchErr})

	_, err := e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "google", fe.Source)
	assert.Equal(t, version, store.Version())
}

func TestRunPass_CancelledContextNeverApplies(t *testing.T) {
	store := newStore(t)
	fetcher := &stubFetcher{result: FetchResult{Events: []IncomingEvent{{
		TrackingIDEvent: "t1", TrackingIDCalendar: "c1", StartedAt: "2024-01-15T10:00:00Z",
	}}}}
	e := newTestEngine(t, store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.RunPass(ctx, testWindow(), map[string]string{"c1": "cal-local-1"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.RowIDs(model.TableEvents))
}

func TestRunPass_RefreshesSessionSnapshot(t *testing.T) {
	store := newStore(t)

	snapshot, err := model.EncodeSessionEvent(model.SessionEvent{
		TrackingID: "t1",
		CalendarID: "cal-local-1",
		Title:      "Old title",
		StartedAt:  "2024-01-15T09:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, store.SetRow(model.TableSessions, "s1", model.Session{
		ID: "s1", UserID: "u1", CreatedAt: "2024-01-01T00:00:00Z", Title: "Notes", Event: snapshot,
	}.Row()))

	// The source event row is gone, only the session snapshot remains.
	fetcher := &stubFetcher{result: FetchResult{
		Events: []IncomingEvent{{
			TrackingIDEvent:    "t1",
			TrackingIDCalendar: "c1",
			Title:              "New title",
			StartedAt:          "2024-01-15T10:00:00Z",
		}},
		Participants: []IncomingParticipant{
			{EventTrackingID: "t1", Name: "alice", Email: "alice@example.com"},
		},
	}}

	e := newTestEngine(t, store, fetcher)
	_, err = e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	require.NoError(t, err)

	se, ok := model.DecodeSessionEvent(model.SessionFromRow("s1", store.GetRow(model.TableSessions, "s1")).Event)
	require.True(t, ok)
	assert.Equal(t, "New title", se.Title)
	assert.Equal(t, "2024-01-15T10:00:00Z", se.StartedAt)
	assert.Equal(t, "cal-local-1", se.CalendarID)

	ids, err := store.RowsWith(model.IndexParticipantsBySession, "s1")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	p := model.ParticipantFromRow(ids[0], store.GetRow(model.TableParticipants, ids[0]))
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "alice@example.com", p.Email)
}

func TestRunPass_SnapshotCalendarFallsBackToEmpty(t *testing.T) {
	store := newStore(t)
	snapshot, err := model.EncodeSessionEvent(model.SessionEvent{
		TrackingID: "t1",
		CalendarID: "cal-local-1",
		Title:      "Old",
		StartedAt:  "2024-01-15T09:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, store.SetRow(model.TableSessions, "s1", model.Session{
		ID: "s1", UserID: "u1", CreatedAt: "2024-01-01T00:00:00Z", Event: snapshot,
	}.Row()))

	// Incoming event from a calendar that is not resolvable locally: the
	// event itself is dropped, but the session snapshot still refreshes
	// with an empty calendar id.
	fetcher := &stubFetcher{result: FetchResult{Events: []IncomingEvent{{
		TrackingIDEvent:    "t1",
		TrackingIDCalendar: "unknown-cal",
		Title:              "New",
		StartedAt:          "2024-01-15T10:00:00Z",
	}}}}

	e := newTestEngine(t, store, fetcher)
	_, err = e.RunPass(context.Background(), testWindow(), map[string]string{"c1": "cal-local-1"})
	require.NoError(t, err)

	assert.Empty(t, store.RowIDs(model.TableEvents))
	se, ok := model.DecodeSessionEvent(model.SessionFromRow("s1", store.GetRow(model.TableSessions, "s1")).Event)
	require.True(t, ok)
	assert.Equal(t, "New", se.Title)
	assert.Equal(t, "", se.CalendarID)
}
