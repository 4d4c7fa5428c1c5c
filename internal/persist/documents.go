package persist

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

// File names inside a session directory and at the collection root.
const (
	metaFileName   = "_meta.json"
	rawFileName    = "raw.md"
	eventsFileName = "events.json"
	valuesFileName = "values.json"
)

// sessionMeta is the _meta.json document. Participants are inlined into
// the bundle; transcripts and enhanced notes live in sibling files.
type sessionMeta struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	CreatedAt    string              `json:"created_at"`
	Title        string              `json:"title"`
	Event        *model.SessionEvent `json:"event,omitempty"`
	Participants []participantDoc    `json:"participants"`
	Tags         []string            `json:"tags,omitempty"`
}

type participantDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// eventDoc is one entry of events.json, keyed by the event's row id.
type eventDoc struct {
	UserID             string `json:"user_id"`
	CreatedAt          string `json:"created_at"`
	TrackingID         string `json:"tracking_id_event"`
	CalendarID         string `json:"calendar_id"`
	Title              string `json:"title"`
	StartedAt          string `json:"started_at"`
	EndedAt            string `json:"ended_at"`
	IsAllDay           bool   `json:"is_all_day"`
	HasRecurrenceRules *bool  `json:"has_recurrence_rules,omitempty"`
	RecurrenceSeriesID string `json:"recurrence_series_id,omitempty"`
	Location           string `json:"location,omitempty"`
	MeetingLink        string `json:"meeting_link,omitempty"`
	Description        string `json:"description,omitempty"`
}

func eventDocOf(e model.Event) eventDoc {
	return eventDoc{
		UserID:             e.UserID,
		CreatedAt:          e.CreatedAt,
		TrackingID:         e.TrackingID,
		CalendarID:         e.CalendarID,
		Title:              e.Title,
		StartedAt:          e.StartedAt,
		EndedAt:            e.EndedAt,
		IsAllDay:           e.IsAllDay,
		HasRecurrenceRules: e.HasRecurrenceRules,
		RecurrenceSeriesID: e.RecurrenceSeriesID,
		Location:           e.Location,
		MeetingLink:        e.MeetingLink,
		Description:        e.Description,
	}
}

func (d eventDoc) event(id string) model.Event {
	return model.Event{
		ID:                 id,
		UserID:             d.UserID,
		CreatedAt:          d.CreatedAt,
		TrackingID:         d.TrackingID,
		CalendarID:         d.CalendarID,
		Title:              d.Title,
		StartedAt:          d.StartedAt,
		EndedAt:            d.EndedAt,
		IsAllDay:           d.IsAllDay,
		HasRecurrenceRules: d.HasRecurrenceRules,
		RecurrenceSeriesID: d.RecurrenceSeriesID,
		Location:           d.Location,
		MeetingLink:        d.MeetingLink,
		Description:        d.Description,
	}
}

// buildSessionMeta assembles the bundle document for one session from its
// row plus related child rows gathered through the secondary indexes.
func buildSessionMeta(tx storeReader, id string, row rowstore.Row) (sessionMeta, error) {
	s := model.SessionFromRow(id, row)
	meta := sessionMeta{
		ID:           s.ID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		Title:        s.Title,
		Participants: []participantDoc{},
	}

	if s.Event != "" {
		if se, ok := model.DecodeSessionEvent(s.Event); ok {
			meta.Event = &se
		}
	}

	pids, err := tx.RowsWith(model.IndexParticipantsBySession, id)
	if err != nil {
		return meta, fmt.Errorf("gather participants: %w", err)
	}
	for _, pid := range pids {
		p := model.ParticipantFromRow(pid, tx.GetRow(model.TableParticipants, pid))
		meta.Participants = append(meta.Participants, participantDoc{ID: p.ID, Name: p.Name, Email: p.Email})
	}

	tids, err := tx.RowsWith(model.IndexTagsBySession, id)
	if err != nil {
		return meta, fmt.Errorf("gather tags: %w", err)
	}
	for _, tid := range tids {
		t := model.TagFromRow(tid, tx.GetRow(model.TableTags, tid))
		meta.Tags = append(meta.Tags, t.Name)
	}
	sort.Strings(meta.Tags)

	return meta, nil
}

// storeReader is the read surface shared by the store and a transaction.
type storeReader interface {
	GetRow(table, id string) rowstore.Row
	RowsWith(index string, key any) ([]string, error)
}

func marshalDoc(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
