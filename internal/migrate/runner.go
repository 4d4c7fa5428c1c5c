package migrate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

const welcomeTitle = "Welcome"

const welcomeNote = `# Welcome

This is your first note. Link it to a calendar event or just start typing.
`

// Runner executes the startup migrations against one store.
type Runner struct {
	store  *rowstore.Store
	logger *slog.Logger

	// Overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// NewRunner creates a migration runner.
func NewRunner(store *rowstore.Store, logger *slog.Logger) *Runner {
	return &Runner{
		store:  store,
		logger: logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Run applies every migration step in order inside a single transaction.
// legacy, when non-nil, is applied first and only into an empty store.
func (r *Runner) Run(legacy *LegacyData) error {
	now := r.Now().UTC().Format(time.RFC3339)

	err := r.store.Transaction(func(tx *rowstore.Tx) error {
		if legacy != nil {
			r.applyLegacy(tx, legacy)
		}
		r.seedDefaults(tx, now)
		if err := r.migrateIgnoredFlags(tx, now); err != nil {
			return err
		}
		if err := r.migrateSessionEventLinks(tx); err != nil {
			return err
		}
		return r.migrateIgnoredSeriesShape(tx, now)
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// applyLegacy loads extracted rows, but never over existing data: a store
// that already holds sessions or events is past the legacy import.
func (r *Runner) applyLegacy(tx *rowstore.Tx, legacy *LegacyData) {
	if len(tx.RowIDs(model.TableSessions)) > 0 || len(tx.RowIDs(model.TableEvents)) > 0 {
		return
	}
	for _, s := range legacy.Sessions {
		tx.SetRow(model.TableSessions, s.ID, s.Row())
	}
	for _, e := range legacy.Events {
		tx.SetRow(model.TableEvents, e.ID, e.Row())
	}
	r.logger.Info("imported legacy database",
		"sessions", len(legacy.Sessions), "events", len(legacy.Events))
}

// seedDefaults guarantees a user identity and at least one session.
func (r *Runner) seedDefaults(tx *rowstore.Tx, now string) {
	userID, ok := tx.GetValue(model.ValueUserID)
	uid, _ := userID.(string)
	if !ok || uid == "" {
		uid = r.NewID()
		tx.SetValue(model.ValueUserID, uid)
	}

	if len(tx.RowIDs(model.TableSessions)) > 0 {
		return
	}
	id := r.NewID()
	tx.SetRow(model.TableSessions, id, model.Session{
		ID:        id,
		UserID:    uid,
		CreatedAt: now,
		Title:     welcomeTitle,
		RawMD:     welcomeNote,
	}.Row())
	r.logger.Info("seeded welcome session", "session", id)
}

// migrateIgnoredFlags folds the legacy per-event ignore flag into the
// ignored-events value. Entries already present keep their last_seen
// timestamp; events whose recurrence series is itself ignored are dropped
// rather than duplicated. The flag is removed from every event row.
func (r *Runner) migrateIgnoredFlags(tx *rowstore.Tx, now string) error {
	ignoredSeries := ignoredSeriesIDs(tx)

	var collected []model.IgnoredEvent
	tx.ForEachRow(model.TableEvents, func(id string, row rowstore.Row) {
		flag, ok := row["ignored"].(bool)
		if _, present := row["ignored"]; !present {
			return
		}
		tx.DelCell(model.TableEvents, id, "ignored")
		if !ok || !flag {
			return
		}

		e := model.EventFromRow(id, row)
		if e.RecurrenceSeriesID != "" {
			if _, ok := ignoredSeries[e.RecurrenceSeriesID]; ok {
				return
			}
		}
		entry := model.IgnoredEvent{TrackingID: e.TrackingID, LastSeen: now}
		if e.Recurring() {
			entry.Day = model.DayOf(e.StartedAt)
		}
		collected = append(collected, entry)
	})
	if len(collected) == 0 {
		return nil
	}

	raw, _ := tx.GetValue(model.ValueIgnoredEvents)
	existing := model.DecodeIgnoredEvents(raw)
	keys := make(map[string]struct{}, len(existing))
	for _, ie := range existing {
		keys[ie.Key()] = struct{}{}
	}

	added := false
	for _, entry := range collected {
		if _, ok := keys[entry.Key()]; ok {
			continue
		}
		keys[entry.Key()] = struct{}{}
		existing = append(existing, entry)
		added = true
	}
	if !added {
		return nil
	}

	encoded, err := model.EncodeIgnoredEvents(existing)
	if err != nil {
		return fmt.Errorf("ignored flags: %w", err)
	}
	tx.SetValue(model.ValueIgnoredEvents, encoded)
	r.logger.Info("migrated ignored-event flags", "entries", len(collected))
	return nil
}

// ignoredSeriesIDs reads the ignored-series value accepting both the
// current record shape and the legacy plain id list.
func ignoredSeriesIDs(tx *rowstore.Tx) map[string]struct{} {
	out := make(map[string]struct{})
	raw, _ := tx.GetValue(model.ValueIgnoredSeries)
	s, ok := raw.(string)
	if !ok {
		return out
	}
	var entries []any
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return out
	}
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			out[v] = struct{}{}
		case map[string]any:
			if id, ok := v["id"].(string); ok {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// migrateSessionEventLinks rewrites the legacy event_id cell as a full
// embedded snapshot. The id is resolved against the events table first by
// row id, then by tracking id; an unresolvable link is cleared instead of
// dangling.
func (r *Runner) migrateSessionEventLinks(tx *rowstore.Tx) error {
	var resolveErr error
	tx.ForEachRow(model.TableSessions, func(id string, row rowstore.Row) {
		if resolveErr != nil {
			return
		}
		if _, ok := row["event"]; ok {
			// Current shape; drop a leftover legacy cell if present.
			if _, legacy := row["event_id"]; legacy {
				tx.DelCell(model.TableSessions, id, "event_id")
			}
			return
		}
		legacyID, ok := row["event_id"].(string)
		if !ok || legacyID == "" {
			return
		}

		event, found, err := resolveEvent(tx, legacyID)
		if err != nil {
			resolveErr = err
			return
		}
		if !found {
			r.logger.Warn("unresolvable legacy event link cleared",
				"session", id, "event_id", legacyID)
			tx.DelCell(model.TableSessions, id, "event_id")
			return
		}

		encoded, err := model.EncodeSessionEvent(model.SnapshotOf(event, event.CalendarID))
		if err != nil {
			resolveErr = fmt.Errorf("session %s: %w", id, err)
			return
		}
		tx.SetPartialRow(model.TableSessions, id, rowstore.Row{
			"event":    encoded,
			"event_id": nil,
		})
	})
	return resolveErr
}

func resolveEvent(tx *rowstore.Tx, legacyID string) (model.Event, bool, error) {
	if row := tx.GetRow(model.TableEvents, legacyID); row != nil {
		return model.EventFromRow(legacyID, row), true, nil
	}
	ids, err := tx.RowsWith(model.IndexEventsByTracking, legacyID)
	if err != nil {
		return model.Event{}, false, fmt.Errorf("resolve event %q: %w", legacyID, err)
	}
	if len(ids) == 0 {
		return model.Event{}, false, nil
	}
	id := ids[0]
	return model.EventFromRow(id, tx.GetRow(model.TableEvents, id)), true, nil
}

// migrateIgnoredSeriesShape upgrades the legacy plain id list to
// {id, last_seen} records. A list that already holds records is left
// byte-identical.
func (r *Runner) migrateIgnoredSeriesShape(tx *rowstore.Tx, now string) error {
	raw, ok := tx.GetValue(model.ValueIgnoredSeries)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	var entries []any
	if err := json.Unmarshal([]byte(s), &entries); err != nil || len(entries) == 0 {
		return nil
	}

	legacy := false
	upgraded := make([]model.IgnoredSeries, 0, len(entries))
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			legacy = true
			upgraded = append(upgraded, model.IgnoredSeries{ID: v, LastSeen: now})
		case map[string]any:
			id, _ := v["id"].(string)
			seen, _ := v["last_seen"].(string)
			if id != "" {
				upgraded = append(upgraded, model.IgnoredSeries{ID: id, LastSeen: seen})
			}
		}
	}
	if !legacy {
		return nil
	}

	encoded, err := model.EncodeIgnoredSeries(upgraded)
	if err != nil {
		return fmt.Errorf("ignored series: %w", err)
	}
	tx.SetValue(model.ValueIgnoredSeries, encoded)
	r.logger.Info("upgraded ignored-series value", "entries", len(upgraded))
	return nil
}
