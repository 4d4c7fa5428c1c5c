package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hurajgor/hyprnote/internal/model"
)

// LegacyData holds rows extracted from the pre-file-collection SQLite
// database, ready to be applied by Runner.Run.
type LegacyData struct {
	Sessions []model.Session
	Events   []model.Event
}

// ImportLegacyDatabase reads sessions and events out of the legacy SQLite
// database at path. A missing file returns (nil, nil): there is simply
// nothing to import. The database is opened read-only; call this before
// Run so the extraction happens outside the startup transaction.
func ImportLegacyDatabase(ctx context.Context, path string) (*LegacyData, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("import legacy database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("import legacy database: open: %w", err)
	}
	defer db.Close()

	data := &LegacyData{}
	if data.Sessions, err = legacySessions(ctx, db); err != nil {
		return nil, fmt.Errorf("import legacy database: %w", err)
	}
	if data.Events, err = legacyEvents(ctx, db); err != nil {
		return nil, fmt.Errorf("import legacy database: %w", err)
	}
	return data, nil
}

func legacySessions(ctx context.Context, db *sql.DB) ([]model.Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id,
		       COALESCE(user_id, ''),
		       COALESCE(created_at, ''),
		       COALESCE(title, ''),
		       COALESCE(raw_memo_html, ''),
		       COALESCE(calendar_event_id, '')
		FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.Title, &s.RawMD, &s.LegacyEventID); err != nil {
			return nil, fmt.Errorf("sessions: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func legacyEvents(ctx context.Context, db *sql.DB) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id,
		       COALESCE(user_id, ''),
		       COALESCE(created_at, ''),
		       COALESCE(tracking_id, ''),
		       COALESCE(calendar_id, ''),
		       COALESCE(name, ''),
		       COALESCE(start_date, ''),
		       COALESCE(end_date, ''),
		       COALESCE(is_all_day, 0)
		FROM events`)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.CreatedAt, &e.TrackingID,
			&e.CalendarID, &e.Title, &e.StartedAt, &e.EndedAt, &e.IsAllDay); err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
