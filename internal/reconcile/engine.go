package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

// Engine runs reconciliation passes against one store.
type Engine struct {
	store   *rowstore.Store
	fetcher Fetcher
	logger  *slog.Logger
	userID  string

	// Overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// New creates a reconciliation engine writing rows owned by userID.
func New(store *rowstore.Store, fetcher Fetcher, logger *slog.Logger, userID string) *Engine {
	return &Engine{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		userID:  userID,
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// RunPass executes one fetch-diff-apply cycle and returns tracking id ->
// local event id for every event that now exists.
//
// The fetch happens before any transaction is opened and may be cancelled
// through ctx; a fetch failure or cancellation aborts the pass with the
// store untouched. The diff is then computed and applied inside a single
// transaction, so a mid-pass failure can never leave a half-updated store.
func (e *Engine) RunPass(ctx context.Context, req FetchRequest, calendars map[string]string) (map[string]string, error) {
	res, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	// Apply-or-discard: a cancelled fetch must not reach the store even
	// if the fetcher returned partial results instead of an error.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result map[string]string
		diff   Diff
	)
	err = e.store.Transaction(func(tx *rowstore.Tx) error {
		existing := existingInWindow(tx, req.From, req.To)
		diff = ComputeDiff(res.Events, existing, calendars)
		result = applyDiff(tx, diff, calendars, e.userID, e.Now(), e.NewID)
		refreshSessionSnapshots(tx, res.Events, calendars)
		return reconcileParticipants(tx, res.Participants)
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation pass: %w", err)
	}

	e.logger.Info("reconciliation pass applied",
		"added", len(diff.ToAdd),
		"updated", len(diff.ToUpdate),
		"deleted", len(diff.ToDelete),
		"incoming", len(res.Events))
	return result, nil
}

// existingInWindow collects local events whose start falls inside the
// fetched range. Events outside the window (or without a parseable start)
// are left untouched - the fetch says nothing about them.
func existingInWindow(tx *rowstore.Tx, from, to time.Time) []model.Event {
	var out []model.Event
	tx.ForEachRow(model.TableEvents, func(id string, row rowstore.Row) {
		ev := model.EventFromRow(id, row)
		started, ok := parseEventTime(ev.StartedAt)
		if !ok {
			return
		}
		if started.Before(from) || started.After(to) {
			return
		}
		out = append(out, ev)
	})
	return out
}

// parseEventTime accepts RFC 3339 timestamps and the bare date form used
// by all-day events.
func parseEventTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
