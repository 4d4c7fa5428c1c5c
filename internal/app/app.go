// Package app wires the store, persister, migrations and reconciliation
// engine into one explicitly constructed context object, created once at
// process start and passed by reference.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hurajgor/hyprnote/internal/changes"
	"github.com/hurajgor/hyprnote/internal/config"
	"github.com/hurajgor/hyprnote/internal/migrate"
	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/persist"
	"github.com/hurajgor/hyprnote/internal/reconcile"
	"github.com/hurajgor/hyprnote/internal/rowstore"
	"github.com/hurajgor/hyprnote/internal/schema"
)

// saveQueueDepth bounds the commit-to-persist queue. Overflow collapses
// into one full save instead of dropping notifications.
const saveQueueDepth = 64

// App owns the process-lifetime state. Construct with New, then Start.
type App struct {
	Store     *rowstore.Store
	Persister *persist.Persister
	Logger    *slog.Logger

	cfg     config.Config
	fetcher reconcile.Fetcher
	engine  *reconcile.Engine

	saves       chan persist.SaveRequest
	fullPending atomic.Bool
	workerDone  chan struct{}
}

// New builds the app around a fresh store rooted at cfg.DataDir. fetcher
// may be nil when no calendar source is configured; sync passes are then
// skipped.
func New(cfg config.Config, logger *slog.Logger, fetcher reconcile.Fetcher) (*App, error) {
	store := rowstore.New()
	if err := model.RegisterIndexes(store); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	p := persist.New(store, persist.OSFS{},
		persist.PathBuilder{Sep: string(filepath.Separator)}, cfg.DataDir, logger)
	p.Validate = schema.ValidateSessionMeta

	return &App{
		Store:      store,
		Persister:  p,
		Logger:     logger,
		cfg:        cfg,
		fetcher:    fetcher,
		saves:      make(chan persist.SaveRequest, saveQueueDepth),
		workerDone: make(chan struct{}),
	}, nil
}

// Start loads the on-disk tree, applies the startup migrations and begins
// the commit-to-persist pipeline. The persist worker exits when ctx is
// cancelled; call Stop afterwards to flush a final snapshot.
func (a *App) Start(ctx context.Context) error {
	if err := a.Persister.Load(ctx); err != nil {
		return fmt.Errorf("app start: %w", err)
	}

	legacy, err := migrate.ImportLegacyDatabase(ctx, a.cfg.LegacyDBPath)
	if err != nil {
		// The import is best effort; current-format data is unaffected.
		a.Logger.Warn("legacy database import failed, continuing", "error", err)
	}
	if err := migrate.NewRunner(a.Store, a.Logger).Run(legacy); err != nil {
		return fmt.Errorf("app start: %w", err)
	}

	uid, _ := a.Store.GetValue(model.ValueUserID)
	userID, _ := uid.(string)
	a.engine = reconcile.New(a.Store, a.fetcher, a.Logger, userID)

	a.Store.OnCommit(a.enqueueCommit)
	go a.persistLoop(ctx)

	// Bring the tree in line with whatever load and migration produced.
	a.requestSave(persist.Full())
	return nil
}

// Stop waits for the persist worker to drain after ctx cancellation and
// writes one final full snapshot.
func (a *App) Stop() error {
	<-a.workerDone
	if err := a.Persister.Save(persist.Full()); err != nil {
		return fmt.Errorf("app stop: %w", err)
	}
	return nil
}

// enqueueCommit is the store commit listener. It runs under the store
// lock, so it only extracts and enqueues; all persistence happens on the
// worker goroutine, in commit order.
func (a *App) enqueueCommit(payload []any) {
	tables, ok := changes.Extract(payload)
	values := changes.ValuesChanged(payload)
	if !ok {
		if !values {
			return
		}
		tables = changes.ChangedTables{}
	}
	a.requestSave(persist.SaveRequest{Tables: tables, Values: values})
}

func (a *App) requestSave(req persist.SaveRequest) {
	select {
	case a.saves <- req:
	default:
		a.fullPending.Store(true)
	}
}

// persistLoop drains the save queue in order on a single goroutine, which
// preserves the commit-order guarantee without blocking committers.
func (a *App) persistLoop(ctx context.Context) {
	defer close(a.workerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-a.saves:
			a.save(req)
		}
		if a.fullPending.Swap(false) {
			a.save(persist.Full())
		}
	}
}

// save logs write failures instead of crashing the worker; the store stays
// authoritative and the next save retries from current state.
func (a *App) save(req persist.SaveRequest) {
	if err := a.Persister.Save(req); err != nil {
		a.Logger.Error("persist failed", "error", err)
	}
}

// RunSyncPass executes one reconciliation pass over the configured window.
// The configured calendar ids are the synced set; they double as the local
// calendar ids since calendars have no separate local rows.
func (a *App) RunSyncPass(ctx context.Context) (map[string]string, error) {
	if a.engine == nil {
		return nil, errors.New("sync pass: app not started")
	}
	if a.fetcher == nil {
		return nil, nil
	}

	now := time.Now()
	req := reconcile.FetchRequest{
		From:        now.Add(-a.cfg.WindowPast),
		To:          now.Add(a.cfg.WindowFuture),
		CalendarIDs: a.cfg.CalendarIDs,
	}
	calendars := make(map[string]string, len(a.cfg.CalendarIDs))
	for _, id := range a.cfg.CalendarIDs {
		calendars[id] = id
	}
	return a.engine.RunPass(ctx, req, calendars)
}

// RunLoop runs sync passes until ctx is cancelled. Fetch failures are
// logged and retried on the next tick; they never stop the loop.
func (a *App) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		if _, err := a.RunSyncPass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var fe *reconcile.FetchError
			if errors.As(err, &fe) {
				a.Logger.Warn("calendar fetch failed, retrying next tick",
					"source", fe.Source, "error", fe.Err)
			} else {
				a.Logger.Error("sync pass failed", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
