// Package persist maps the row store to a directory-per-session on-disk
// layout and back.
//
// Layout, relative to the collection root:
//
//	<folder path...>/<session id>/_meta.json   session bundle (+participants, tags)
//	<folder path...>/<session id>/raw.md       note body
//	<folder path...>/<session id>/transcript_<id>.md   frontmatter + content
//	<folder path...>/<session id>/enhanced_<id>.md     frontmatter + content
//	events.json    all event rows, keyed by row id
//	values.json    keyed store values (ignored lists, user id)
//
// The disk tree is a derived cache of the store: load never fails on a
// single bad document, and a full save can rebuild the tree at any time.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hurajgor/hyprnote/internal/changes"
	"github.com/hurajgor/hyprnote/internal/model"
	"github.com/hurajgor/hyprnote/internal/rowstore"
)

// SaveRequest selects what to persist. A nil Tables means a full save of
// every session; Values marks the keyed-values document dirty.
type SaveRequest struct {
	Tables changes.ChangedTables
	Values bool
}

// Full returns a request that rewrites the entire tree.
func Full() SaveRequest {
	return SaveRequest{Values: true}
}

// Persister mirrors the store to disk, incrementally when given a
// changed-tables map.
type Persister struct {
	store  *rowstore.Store
	fs     FS
	pb     PathBuilder
	root   string
	logger *slog.Logger

	// Validate, when set, is run against every _meta.json document on
	// load. Violations are logged and the document is loaded anyway.
	Validate func([]byte) error

	mu sync.Mutex
	// sessionPaths remembers where each session was last written or
	// loaded from, so deletions and folder moves can clean up the old
	// directory.
	sessionPaths map[string]string
}

// New creates a persister rooted at root.
func New(store *rowstore.Store, fsys FS, pb PathBuilder, root string, logger *slog.Logger) *Persister {
	return &Persister{
		store:        store,
		fs:           fsys,
		pb:           pb,
		root:         root,
		logger:       logger,
		sessionPaths: make(map[string]string),
	}
}

func (p *Persister) join(rel string) string {
	return p.root + p.pb.Sep + rel
}

// Load reads the whole tree into the store in one transaction. A missing
// root is empty state. Documents that fail to parse are logged and
// skipped; they never abort the load.
func (p *Persister) Load(ctx context.Context) error {
	loaded, err := p.scan(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	err = p.store.Transaction(func(tx *rowstore.Tx) error {
		for table, rows := range loaded.rows {
			for id, row := range rows {
				tx.SetRow(table, id, row)
			}
		}
		for key, v := range loaded.values {
			tx.SetValue(key, v)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load: apply: %w", err)
	}

	p.mu.Lock()
	for id, rel := range loaded.sessionPaths {
		p.sessionPaths[id] = rel
	}
	p.mu.Unlock()
	return nil
}

type loadResult struct {
	rows         map[string]map[string]rowstore.Row
	values       map[string]any
	sessionPaths map[string]string
}

func (p *Persister) scan(ctx context.Context) (*loadResult, error) {
	out := &loadResult{
		rows:         make(map[string]map[string]rowstore.Row),
		values:       make(map[string]any),
		sessionPaths: make(map[string]string),
	}

	if err := p.scanDir(ctx, "", out); err != nil {
		return nil, err
	}
	p.scanEvents(out)
	p.scanValues(out)
	return out, nil
}

// scanDir walks the tree under rel, treating any directory that contains a
// _meta.json as a session directory and every other directory as a folder.
func (p *Persister) scanDir(ctx context.Context, rel string, out *loadResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := p.root
	if rel != "" {
		dir = p.join(rel)
	}
	entries, err := p.fs.List(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.Dir {
			continue
		}
		childRel := lastSegment(e.Path, p.pb.Sep)
		if rel != "" {
			childRel = rel + p.pb.Sep + childRel
		}

		meta, err := p.fs.ReadText(e.Path + p.pb.Sep + metaFileName)
		if err != nil {
			if !IsNotExist(err) {
				p.logger.Warn("unreadable session meta, skipping", "path", e.Path, "error", err)
				continue
			}
			if err := p.scanDir(ctx, childRel, out); err != nil {
				return err
			}
			continue
		}
		p.loadSessionDir(childRel, e.Path, meta, out)
	}
	return nil
}

func (p *Persister) loadSessionDir(rel, dir, metaContent string, out *loadResult) {
	if p.Validate != nil {
		if err := p.Validate([]byte(metaContent)); err != nil {
			p.logger.Warn("session meta fails schema validation", "path", dir, "error", err)
		}
	}

	var meta sessionMeta
	if err := json.Unmarshal([]byte(metaContent), &meta); err != nil {
		p.logger.Warn("unparseable session meta, skipping", "path", dir, "error", err)
		return
	}

	id, folder := p.pb.Extract(rel)
	if meta.ID != "" {
		id = meta.ID
	}

	session := model.Session{
		ID:         id,
		UserID:     meta.UserID,
		CreatedAt:  meta.CreatedAt,
		Title:      meta.Title,
		FolderPath: folder,
	}
	if raw, err := p.fs.ReadText(dir + p.pb.Sep + rawFileName); err == nil {
		session.RawMD = raw
	}
	if meta.Event != nil {
		cell, err := model.EncodeSessionEvent(*meta.Event)
		if err == nil {
			session.Event = cell
		}
	}
	out.put(model.TableSessions, id, session.Row())
	out.sessionPaths[id] = rel

	for _, pd := range meta.Participants {
		pid := pd.ID
		if pid == "" {
			pid = id + ":" + pd.Name
		}
		out.put(model.TableParticipants, pid, model.Participant{
			ID: pid, SessionID: id, Name: pd.Name, Email: pd.Email,
		}.Row())
	}
	for _, name := range meta.Tags {
		tid := id + ":" + name
		out.put(model.TableTags, tid, model.Tag{ID: tid, SessionID: id, Name: name}.Row())
	}

	p.loadSiblingFiles(dir, id, out)
}

func (p *Persister) loadSiblingFiles(dir, sessionID string, out *loadResult) {
	entries, err := p.fs.List(dir)
	if err != nil {
		p.logger.Warn("cannot list session directory", "path", dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.Dir {
			continue
		}
		name := lastSegment(e.Path, p.pb.Sep)
		isTranscript := strings.HasPrefix(name, "transcript_") && strings.HasSuffix(name, ".md")
		isEnhanced := strings.HasPrefix(name, "enhanced_") && strings.HasSuffix(name, ".md")
		if !isTranscript && !isEnhanced {
			continue
		}

		content, err := p.fs.ReadText(e.Path)
		if err != nil {
			p.logger.Warn("unreadable sibling file, skipping", "path", e.Path, "error", err)
			continue
		}
		fm, body, err := decodeFrontmatterDoc(content)
		if err != nil {
			p.logger.Warn("unparseable sibling file, skipping", "path", e.Path, "error", err)
			continue
		}
		if fm.ID == "" {
			p.logger.Warn("sibling file missing id, skipping", "path", e.Path)
			continue
		}

		if isTranscript {
			out.put(model.TableTranscripts, fm.ID, model.Transcript{
				ID: fm.ID, SessionID: sessionID, Title: fm.Title, Content: body,
			}.Row())
			continue
		}
		n := model.EnhancedNote{
			ID: fm.ID, SessionID: sessionID, TemplateID: fm.TemplateID, Title: fm.Title, Content: body,
		}
		if fm.Position != nil {
			n.Position = *fm.Position
		}
		out.put(model.TableEnhancedNotes, fm.ID, n.Row())
	}
}

func (p *Persister) scanEvents(out *loadResult) {
	content, err := p.fs.ReadText(p.join(eventsFileName))
	if err != nil {
		if !IsNotExist(err) {
			p.logger.Warn("unreadable events document", "error", err)
		}
		return
	}
	var docs map[string]eventDoc
	if err := json.Unmarshal([]byte(content), &docs); err != nil {
		p.logger.Warn("unparseable events document, skipping", "error", err)
		return
	}
	for id, d := range docs {
		out.put(model.TableEvents, id, d.event(id).Row())
	}
}

func (p *Persister) scanValues(out *loadResult) {
	content, err := p.fs.ReadText(p.join(valuesFileName))
	if err != nil {
		if !IsNotExist(err) {
			p.logger.Warn("unreadable values document", "error", err)
		}
		return
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(content), &values); err != nil {
		p.logger.Warn("unparseable values document, skipping", "error", err)
		return
	}
	for k, v := range values {
		out.values[k] = v
	}
}

func (r *loadResult) put(table, id string, row rowstore.Row) {
	t, ok := r.rows[table]
	if !ok {
		t = make(map[string]rowstore.Row)
		r.rows[table] = t
	}
	t[id] = row
}

// Save persists the selected slice of the store. Snapshots are assembled
// from current row state, never from notification payloads, so replaying
// stale notifications cannot overwrite newer content. Write failures
// propagate to the caller; the store stays authoritative and a retry
// re-saves from current state.
func (p *Persister) Save(req SaveRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	full := req.Tables == nil

	sessionIDs := p.sessionsToSave(req, full)

	var ops []WriteOp
	for _, id := range sessionIDs {
		row := p.store.GetRow(model.TableSessions, id)
		if row == nil {
			if err := p.removeSession(id); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			continue
		}
		sessionOps, err := p.sessionOps(id, row)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		ops = append(ops, sessionOps...)
	}

	if full || req.Tables.HasTable(model.TableEvents) {
		op, err := p.eventsOp()
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		ops = append(ops, op)
	}
	if full || req.Values {
		op, err := p.valuesOp()
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		ops = append(ops, op)
	}

	if err := p.fs.WriteBatch(ops); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// sessionsToSave resolves which session ids the request touches: sessions
// changed directly, plus owners of changed child rows. Deleted child rows
// cannot name their owner anymore; their session row is rewritten on its
// own change, which every cascade delete produces.
//
// A full save visits every live row id plus every id still tracked in
// sessionPaths. The second set catches sessions deleted since the last
// save, so a full save prunes their directories instead of leaving them
// behind to be resurrected by the next load.
func (p *Persister) sessionsToSave(req SaveRequest, full bool) []string {
	if full {
		set := make(map[string]struct{})
		for _, id := range p.store.RowIDs(model.TableSessions) {
			set[id] = struct{}{}
		}
		for id := range p.sessionPaths {
			set[id] = struct{}{}
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}

	set := make(map[string]struct{})
	for id := range req.Tables[model.TableSessions] {
		set[id] = struct{}{}
	}
	for _, table := range []string{
		model.TableParticipants, model.TableTags,
		model.TableTranscripts, model.TableEnhancedNotes,
	} {
		for id := range req.Tables[table] {
			if sid, ok := p.store.GetCell(table, id, "session_id"); ok {
				if s, ok := sid.(string); ok {
					set[s] = struct{}{}
				}
			}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sessionOps builds the write operations for one session directory and
// removes files the current state no longer produces.
func (p *Persister) sessionOps(id string, row rowstore.Row) ([]WriteOp, error) {
	s := model.SessionFromRow(id, row)
	rel := p.pb.Build(id, s.FolderPath)

	if old, ok := p.sessionPaths[id]; ok && old != rel {
		if err := p.fs.Remove(p.join(old)); err != nil {
			return nil, fmt.Errorf("move session %s: %w", id, err)
		}
	}
	p.sessionPaths[id] = rel
	dir := p.join(rel)

	meta, err := buildSessionMeta(p.store, id, row)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	metaJSON, err := marshalDoc(meta)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	ops := []WriteOp{{Path: dir + p.pb.Sep + metaFileName, Content: metaJSON}}
	expected := map[string]struct{}{metaFileName: {}}

	if s.RawMD != "" {
		ops = append(ops, WriteOp{Path: dir + p.pb.Sep + rawFileName, Content: s.RawMD})
		expected[rawFileName] = struct{}{}
	}

	trOps, err := p.transcriptOps(id, dir, expected)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	ops = append(ops, trOps...)

	enOps, err := p.enhancedOps(id, dir, expected)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	ops = append(ops, enOps...)

	if err := p.removeStaleFiles(dir, expected); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return ops, nil
}

func (p *Persister) transcriptOps(sessionID, dir string, expected map[string]struct{}) ([]WriteOp, error) {
	ids, err := p.store.RowsWith(model.IndexTranscriptsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	var ops []WriteOp
	for _, id := range ids {
		tr := model.TranscriptFromRow(id, p.store.GetRow(model.TableTranscripts, id))
		doc, err := encodeFrontmatterDoc(Frontmatter{
			ID: tr.ID, SessionID: sessionID, Title: tr.Title,
		}, tr.Content)
		if err != nil {
			return nil, err
		}
		name := "transcript_" + id + ".md"
		ops = append(ops, WriteOp{Path: dir + p.pb.Sep + name, Content: doc})
		expected[name] = struct{}{}
	}
	return ops, nil
}

func (p *Persister) enhancedOps(sessionID, dir string, expected map[string]struct{}) ([]WriteOp, error) {
	ids, err := p.store.RowsWith(model.IndexEnhancedBySession, sessionID)
	if err != nil {
		return nil, err
	}
	var ops []WriteOp
	for _, id := range ids {
		n := model.EnhancedNoteFromRow(id, p.store.GetRow(model.TableEnhancedNotes, id))
		pos := n.Position
		doc, err := encodeFrontmatterDoc(Frontmatter{
			ID: n.ID, SessionID: sessionID, TemplateID: n.TemplateID, Position: &pos, Title: n.Title,
		}, n.Content)
		if err != nil {
			return nil, err
		}
		name := "enhanced_" + id + ".md"
		ops = append(ops, WriteOp{Path: dir + p.pb.Sep + name, Content: doc})
		expected[name] = struct{}{}
	}
	return ops, nil
}

// removeStaleFiles deletes files in the session directory that the current
// state no longer produces, e.g. a transcript whose row was deleted.
func (p *Persister) removeStaleFiles(dir string, expected map[string]struct{}) error {
	entries, err := p.fs.List(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Dir {
			continue
		}
		name := lastSegment(e.Path, p.pb.Sep)
		if _, ok := expected[name]; ok {
			continue
		}
		if err := p.fs.Remove(e.Path); err != nil {
			return err
		}
	}
	return nil
}

func (p *Persister) removeSession(id string) error {
	rel, ok := p.sessionPaths[id]
	if !ok {
		// Never persisted; nothing on disk to remove.
		return nil
	}
	if err := p.fs.Remove(p.join(rel)); err != nil {
		return fmt.Errorf("remove session %s: %w", id, err)
	}
	delete(p.sessionPaths, id)
	return nil
}

func (p *Persister) eventsOp() (WriteOp, error) {
	docs := make(map[string]eventDoc)
	p.store.ForEachRow(model.TableEvents, func(id string, row rowstore.Row) {
		docs[id] = eventDocOf(model.EventFromRow(id, row))
	})
	content, err := marshalDoc(docs)
	if err != nil {
		return WriteOp{}, fmt.Errorf("events document: %w", err)
	}
	return WriteOp{Path: p.join(eventsFileName), Content: content}, nil
}

func (p *Persister) valuesOp() (WriteOp, error) {
	values := make(map[string]any)
	for _, key := range []string{model.ValueUserID, model.ValueIgnoredEvents, model.ValueIgnoredSeries} {
		if v, ok := p.store.GetValue(key); ok {
			values[key] = v
		}
	}
	content, err := marshalDoc(values)
	if err != nil {
		return WriteOp{}, fmt.Errorf("values document: %w", err)
	}
	return WriteOp{Path: p.join(valuesFileName), Content: content}, nil
}

func lastSegment(path, sep string) string {
	if i := strings.LastIndex(path, sep); i >= 0 {
		return path[i+len(sep):]
	}
	return path
}
