// Package changes extracts the per-transaction changed-tables map from the
// raw commit payload emitted by the row store.
//
// The payload is the loosely typed triple [changes, meta, version]. Only
// which rows were touched is kept; the cell-level diff content is discarded
// on purpose. The persister re-reads current row state from the store
// instead of applying the diff, which rules out diff/store divergence.
package changes

// ChangedTables maps table name -> set of row ids touched in one
// transaction (created, updated or deleted).
type ChangedTables map[string]map[string]struct{}

// Extract pulls the changed-tables map out of a raw commit payload.
//
// Returns false for anything that is not a usable payload: nil input, a
// wrapper that is not a slice, a wrapper shorter than the full
// [changes, meta, version] triple, or a changes element that is not a keyed
// table of keyed rows. Tables with no touched rows produce no entry.
// Extract never mutates its input and has no side effects.
func Extract(payload any) (ChangedTables, bool) {
	if payload == nil {
		return nil, false
	}

	wrapper, ok := payload.([]any)
	if !ok || len(wrapper) < 3 {
		return nil, false
	}

	tables, ok := keyedTables(wrapper[0])
	if !ok {
		return nil, false
	}

	out := make(ChangedTables)
	for table, rows := range tables {
		if len(rows) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(rows))
		for id := range rows {
			set[id] = struct{}{}
		}
		out[table] = set
	}
	return out, true
}

// keyedTables normalizes the changes element into table -> row id -> diff.
// The store emits map[string]map[string]any; a payload that round-tripped
// through JSON arrives as map[string]any instead. Anything else is
// rejected.
func keyedTables(v any) (map[string]map[string]any, bool) {
	switch typed := v.(type) {
	case map[string]map[string]any:
		return typed, true
	case map[string]any:
		out := make(map[string]map[string]any, len(typed))
		for table, rows := range typed {
			keyed, ok := rows.(map[string]any)
			if !ok {
				return nil, false
			}
			out[table] = keyed
		}
		return out, true
	default:
		return nil, false
	}
}

// ValuesChanged reports whether the payload's metadata marks keyed values
// as changed in the transaction. Wrappers shorter than the
// [changes, meta, version] triple are malformed and report false.
func ValuesChanged(payload any) bool {
	wrapper, ok := payload.([]any)
	if !ok || len(wrapper) < 3 {
		return false
	}
	meta, ok := wrapper[1].(map[string]any)
	if !ok {
		return false
	}
	switch keys := meta["values"].(type) {
	case []string:
		return len(keys) > 0
	case []any:
		return len(keys) > 0
	}
	return false
}

// Merge folds other into ct, so queued notifications can be coalesced into
// one incremental save.
func (ct ChangedTables) Merge(other ChangedTables) {
	for table, ids := range other {
		set, ok := ct[table]
		if !ok {
			set = make(map[string]struct{}, len(ids))
			ct[table] = set
		}
		for id := range ids {
			set[id] = struct{}{}
		}
	}
}

// Has reports whether the row id is marked as touched in the table.
func (ct ChangedTables) Has(table, id string) bool {
	_, ok := ct[table][id]
	return ok
}

// HasTable reports whether any row of the table was touched.
func (ct ChangedTables) HasTable(table string) bool {
	_, ok := ct[table]
	return ok
}
