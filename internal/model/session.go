package model

import "github.com/hurajgor/hyprnote/internal/rowstore"

// Session is a single note-taking unit.
//
// Event holds the serialized SessionEvent snapshot, or "" when the session
// is not linked to a calendar event. LegacyEventID carries the pre-snapshot
// linkage (a bare event row id or tracking id) until the migration runner
// rewrites it.
type Session struct {
	ID            string
	UserID        string
	CreatedAt     string
	Title         string
	RawMD         string
	FolderPath    string
	Event         string
	LegacyEventID string
}

// SessionFromRow rebuilds a Session from its row.
func SessionFromRow(id string, row rowstore.Row) Session {
	return Session{
		ID:            id,
		UserID:        strCell(row, "user_id"),
		CreatedAt:     strCell(row, "created_at"),
		Title:         strCell(row, "title"),
		RawMD:         strCell(row, "raw_md"),
		FolderPath:    strCell(row, "folder_path"),
		Event:         strCell(row, "event"),
		LegacyEventID: strCell(row, "event_id"),
	}
}

// Row converts the session to its stored cell map.
func (s Session) Row() rowstore.Row {
	row := rowstore.Row{
		"user_id":    s.UserID,
		"created_at": s.CreatedAt,
		"title":      s.Title,
	}
	if s.RawMD != "" {
		row["raw_md"] = s.RawMD
	}
	if s.FolderPath != "" {
		row["folder_path"] = s.FolderPath
	}
	if s.Event != "" {
		row["event"] = s.Event
	}
	if s.LegacyEventID != "" {
		row["event_id"] = s.LegacyEventID
	}
	return row
}

// Participant attends the meeting a session was taken in. Cascades with its
// session and is persisted inside the session's _meta.json bundle.
type Participant struct {
	ID        string
	SessionID string
	Name      string
	Email     string
}

// ParticipantFromRow rebuilds a Participant from its row.
func ParticipantFromRow(id string, row rowstore.Row) Participant {
	return Participant{
		ID:        id,
		SessionID: strCell(row, "session_id"),
		Name:      strCell(row, "name"),
		Email:     strCell(row, "email"),
	}
}

// Row converts the participant to its stored cell map.
func (p Participant) Row() rowstore.Row {
	row := rowstore.Row{
		"session_id": p.SessionID,
		"name":       p.Name,
	}
	if p.Email != "" {
		row["email"] = p.Email
	}
	return row
}

// Tag labels a session. Cascades with its session.
type Tag struct {
	ID        string
	SessionID string
	Name      string
}

// TagFromRow rebuilds a Tag from its row.
func TagFromRow(id string, row rowstore.Row) Tag {
	return Tag{
		ID:        id,
		SessionID: strCell(row, "session_id"),
		Name:      strCell(row, "name"),
	}
}

// Row converts the tag to its stored cell map.
func (t Tag) Row() rowstore.Row {
	return rowstore.Row{"session_id": t.SessionID, "name": t.Name}
}

// Transcript is the raw transcription of a session, persisted as a sibling
// file with frontmatter inside the session's directory.
type Transcript struct {
	ID        string
	SessionID string
	Title     string
	Content   string
}

// TranscriptFromRow rebuilds a Transcript from its row.
func TranscriptFromRow(id string, row rowstore.Row) Transcript {
	return Transcript{
		ID:        id,
		SessionID: strCell(row, "session_id"),
		Title:     strCell(row, "title"),
		Content:   strCell(row, "content"),
	}
}

// Row converts the transcript to its stored cell map.
func (tr Transcript) Row() rowstore.Row {
	row := rowstore.Row{
		"session_id": tr.SessionID,
		"content":    tr.Content,
	}
	if tr.Title != "" {
		row["title"] = tr.Title
	}
	return row
}

// EnhancedNote is an AI-enhanced rendition of a session note, persisted as
// a sibling file with frontmatter. Position orders multiple enhancements.
type EnhancedNote struct {
	ID         string
	SessionID  string
	TemplateID string
	Title      string
	Position   int
	Content    string
}

// EnhancedNoteFromRow rebuilds an EnhancedNote from its row.
func EnhancedNoteFromRow(id string, row rowstore.Row) EnhancedNote {
	n := EnhancedNote{
		ID:         id,
		SessionID:  strCell(row, "session_id"),
		TemplateID: strCell(row, "template_id"),
		Title:      strCell(row, "title"),
		Content:    strCell(row, "content"),
	}
	if v, ok := row["position"].(float64); ok {
		n.Position = int(v)
	}
	return n
}

// Row converts the enhanced note to its stored cell map.
func (n EnhancedNote) Row() rowstore.Row {
	row := rowstore.Row{
		"session_id": n.SessionID,
		"content":    n.Content,
		"position":   float64(n.Position),
	}
	if n.TemplateID != "" {
		row["template_id"] = n.TemplateID
	}
	if n.Title != "" {
		row["title"] = n.Title
	}
	return row
}
