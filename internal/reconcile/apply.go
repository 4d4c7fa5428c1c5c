package reconcile

import (
	"time"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

// applyDiff executes the diff inside the caller's transaction and returns
// tracking id -> local event id for every event that now exists (added or
// updated). Deletions take effect before additions; the diff construction
// guarantees the same key never appears in both.
func applyDiff(tx *rowstore.Tx, diff Diff, calendars map[string]string, userID string, now time.Time, newID func() string) map[string]string {
	result := make(map[string]string, len(diff.ToAdd)+len(diff.ToUpdate))

	for _, id := range diff.ToDelete {
		tx.DelRow(model.TableEvents, id)
	}

	for _, up := range diff.ToUpdate {
		merged := mergeEvent(up.Local, up.Incoming)
		tx.SetRow(model.TableEvents, merged.ID, merged.Row())
		result[merged.TrackingID] = merged.ID
	}

	for _, in := range diff.ToAdd {
		recurring := in.HasRecurrenceRules
		e := model.Event{
			ID:                 newID(),
			UserID:             userID,
			CreatedAt:          now.UTC().Format(time.RFC3339),
			TrackingID:         in.TrackingIDEvent,
			CalendarID:         calendars[in.TrackingIDCalendar],
			Title:              in.Title,
			StartedAt:          in.StartedAt,
			EndedAt:            in.EndedAt,
			IsAllDay:           in.IsAllDay,
			HasRecurrenceRules: &recurring,
			RecurrenceSeriesID: in.RecurrenceSeriesID,
			Location:           in.Location,
			MeetingLink:        in.MeetingLink,
			Description:        in.Description,
		}
		tx.SetRow(model.TableEvents, e.ID, e.Row())
		result[e.TrackingID] = e.ID
	}

	return result
}

// mergeEvent overwrites local fields with incoming ones, preserving the
// row's identity fields: id, user, created_at and calendar_id. The
// recurrence flag is taken from the incoming event, which also repairs
// legacy rows with an unknown flag.
func mergeEvent(local model.Event, in IncomingEvent) model.Event {
	recurring := in.HasRecurrenceRules
	return model.Event{
		ID:                 local.ID,
		UserID:             local.UserID,
		CreatedAt:          local.CreatedAt,
		CalendarID:         local.CalendarID,
		TrackingID:         in.TrackingIDEvent,
		Title:              in.Title,
		StartedAt:          in.StartedAt,
		EndedAt:            in.EndedAt,
		IsAllDay:           in.IsAllDay,
		HasRecurrenceRules: &recurring,
		RecurrenceSeriesID: in.RecurrenceSeriesID,
		Location:           in.Location,
		MeetingLink:        in.MeetingLink,
		Description:        in.Description,
	}
}

// refreshSessionSnapshots rewrites the embedded event snapshot of every
// session whose snapshot key matches an incoming event. Sessions are
// matched independently of the event diff so a session keeps its event
// context even after the source event row was deleted. An unresolvable
// calendar falls back to an empty calendar id.
func refreshSessionSnapshots(tx *rowstore.Tx, incoming []IncomingEvent, calendars map[string]string) {
	if len(incoming) == 0 {
		return
	}
	byKey := make(map[string]IncomingEvent, len(incoming))
	for _, in := range incoming {
		byKey[in.Key()] = in
	}

	tx.ForEachRow(model.TableSessions, func(id string, row rowstore.Row) {
		cell, _ := row["event"].(string)
		if cell == "" {
			return
		}
		se, ok := model.DecodeSessionEvent(cell)
		if !ok {
			return
		}
		in, ok := byKey[se.Key()]
		if !ok {
			return
		}

		next := snapshotOfIncoming(in, calendars[in.TrackingIDCalendar])
		encoded, err := model.EncodeSessionEvent(next)
		if err != nil {
			return
		}
		if encoded == cell {
			return
		}
		tx.SetPartialRow(model.TableSessions, id, rowstore.Row{"event": encoded})
	})
}

func snapshotOfIncoming(in IncomingEvent, calendarID string) model.SessionEvent {
	return model.SessionEvent{
		TrackingID:         in.TrackingIDEvent,
		CalendarID:         calendarID,
		Title:              in.Title,
		StartedAt:          in.StartedAt,
		EndedAt:            in.EndedAt,
		IsAllDay:           in.IsAllDay,
		HasRecurrenceRules: in.HasRecurrenceRules,
		Location:           in.Location,
		MeetingLink:        in.MeetingLink,
		Description:        in.Description,
		RecurrenceSeriesID: in.RecurrenceSeriesID,
	}
}

// reconcileParticipants replaces the participant rows of every session
// whose embedded snapshot belongs to an event with incoming participants.
// Participant row ids are derived from (session id, name) so replaying the
// same incoming set is a no-op.
func reconcileParticipants(tx *rowstore.Tx, participants []IncomingParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	byTracking := make(map[string][]IncomingParticipant)
	for _, p := range participants {
		byTracking[p.EventTrackingID] = append(byTracking[p.EventTrackingID], p)
	}

	var applyErr error
	tx.ForEachRow(model.TableSessions, func(id string, row rowstore.Row) {
		if applyErr != nil {
			return
		}
		cell, _ := row["event"].(string)
		se, ok := model.DecodeSessionEvent(cell)
		if !ok {
			return
		}
		plist, ok := byTracking[se.TrackingID]
		if !ok {
			return
		}

		existing, err := tx.RowsWith(model.IndexParticipantsBySession, id)
		if err != nil {
			applyErr = err
			return
		}
		for _, pid := range existing {
			tx.DelRow(model.TableParticipants, pid)
		}
		for _, p := range plist {
			pid := id + ":" + p.Name
			tx.SetRow(model.TableParticipants, pid, model.Participant{
				ID: pid, SessionID: id, Name: p.Name, Email: p.Email,
			}.Row())
		}
	})
	return applyErr
}
