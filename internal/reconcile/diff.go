package reconcile

import "github.com/hurajgor/hyprnote/internal/model"

// Diff is the outcome of matching existing local events against an
// incoming set.
type Diff struct {
	ToAdd    []IncomingEvent
	ToUpdate []Update
	ToDelete []string // local event row ids
}

// Update pairs an existing local event with the incoming event that
// matched its identity key.
type Update struct {
	Local    model.Event
	Incoming IncomingEvent
}

// Empty reports whether the diff would change nothing.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// ComputeDiff matches existing local events against the incoming set.
//
// calendars maps calendar tracking id -> local calendar id; its values are
// the set of locally synced calendars. An existing event whose calendar
// left that set is deleted. An incoming event whose calendar does not
// resolve is silently dropped - the calendar may simply not be synced
// locally yet.
//
// An existing row with an unknown recurrence flag (legacy data) is probed
// with both keying strategies; when both match different incoming events
// the recurring-key match wins, so the outcome does not depend on map
// iteration order.
func ComputeDiff(incoming []IncomingEvent, existing []model.Event, calendars map[string]string) Diff {
	byKey := make(map[string]IncomingEvent, len(incoming))
	for _, in := range incoming {
		byKey[in.Key()] = in
	}

	syncedLocal := make(map[string]struct{}, len(calendars))
	for _, localID := range calendars {
		syncedLocal[localID] = struct{}{}
	}

	var diff Diff
	handled := make(map[string]struct{})

	for _, ex := range existing {
		if ex.CalendarID != "" {
			if _, ok := syncedLocal[ex.CalendarID]; !ok {
				diff.ToDelete = append(diff.ToDelete, ex.ID)
				continue
			}
		}

		in, key, ok := matchIncoming(byKey, ex)
		if !ok {
			// No longer present upstream.
			diff.ToDelete = append(diff.ToDelete, ex.ID)
			continue
		}
		diff.ToUpdate = append(diff.ToUpdate, Update{Local: ex, Incoming: in})
		handled[key] = struct{}{}
	}

	for _, in := range incoming {
		key := in.Key()
		if _, ok := handled[key]; ok {
			continue
		}
		if _, ok := calendars[in.TrackingIDCalendar]; !ok {
			continue
		}
		diff.ToAdd = append(diff.ToAdd, in)
	}

	return diff
}

// matchIncoming finds the incoming event matching an existing row's
// identity key. Rows with a known recurrence flag use exactly one key;
// legacy rows probe the recurring key first, then the non-recurring one.
func matchIncoming(byKey map[string]IncomingEvent, ex model.Event) (IncomingEvent, string, bool) {
	if ex.HasRecurrenceRules != nil {
		key := ex.Key()
		in, ok := byKey[key]
		return in, key, ok
	}

	recurringKey := model.EventKey(ex.TrackingID, ex.StartedAt, true)
	if in, ok := byKey[recurringKey]; ok {
		return in, recurringKey, true
	}
	plainKey := model.EventKey(ex.TrackingID, ex.StartedAt, false)
	in, ok := byKey[plainKey]
	return in, plainKey, ok
}
