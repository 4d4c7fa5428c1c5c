package rowstore

import (
	"fmt"
	"sort"
)

// Tx is a single transaction's view of the store. All writes are staged and
// applied atomically when the transaction function returns nil; any error
// discards every staged write.
//
// A Tx is only valid inside the Transaction callback that produced it.
type Tx struct {
	s      *Store
	staged map[string]map[string]stagedRow
	values map[string]stagedValue
}

type stagedRow struct {
	row     Row
	deleted bool
}

type stagedValue struct {
	value   any
	deleted bool
}

// Transaction runs fn with a transactional view of the store. Transactions
// are serialized; the commit is atomic. When the commit produced at least
// one effective change, the raw [changes, meta, version] payload is
// delivered to every listener before the next transaction can begin.
func (s *Store) Transaction(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		s:      s,
		staged: make(map[string]map[string]stagedRow),
		values: make(map[string]stagedValue),
	}

	if err := fn(tx); err != nil {
		return err
	}

	changes, changedValues := tx.commit()
	if len(changes) == 0 && len(changedValues) == 0 {
		return nil
	}

	s.version++
	meta := map[string]any{}
	if len(changedValues) > 0 {
		meta["values"] = changedValues
	}
	payload := []any{changes, meta, s.version}
	for _, l := range s.listeners {
		l(payload)
	}
	return nil
}

// GetRow returns a copy of the row as seen by this transaction.
func (tx *Tx) GetRow(table, id string) Row {
	if sr, ok := tx.stagedFor(table, id); ok {
		if sr.deleted {
			return nil
		}
		return cloneRow(sr.row)
	}
	return cloneRow(tx.s.tables[table][id])
}

// GetCell returns one cell as seen by this transaction.
func (tx *Tx) GetCell(table, id, cell string) (any, bool) {
	row := tx.GetRow(table, id)
	if row == nil {
		return nil, false
	}
	v, ok := row[cell]
	return v, ok
}

// HasRow reports whether the row exists as seen by this transaction.
func (tx *Tx) HasRow(table, id string) bool {
	return tx.GetRow(table, id) != nil
}

// SetRow stages a full-row write. The previous row shape, if any, is
// replaced wholesale.
func (tx *Tx) SetRow(table, id string, row Row) {
	tx.stage(table, id, stagedRow{row: cloneRow(row)})
}

// SetPartialRow stages a merge of cells into the row as seen by this
// transaction, creating the row when absent. A nil cell value removes that
// cell.
func (tx *Tx) SetPartialRow(table, id string, cells Row) {
	row := tx.GetRow(table, id)
	if row == nil {
		row = make(Row, len(cells))
	}
	for k, v := range cells {
		if v == nil {
			delete(row, k)
			continue
		}
		row[k] = v
	}
	tx.stage(table, id, stagedRow{row: row})
}

// DelRow stages a row deletion.
func (tx *Tx) DelRow(table, id string) {
	tx.stage(table, id, stagedRow{deleted: true})
}

// DelCell stages removal of one cell from the row, leaving the rest intact.
// A missing row is a no-op.
func (tx *Tx) DelCell(table, id, cell string) {
	row := tx.GetRow(table, id)
	if row == nil {
		return
	}
	delete(row, cell)
	tx.stage(table, id, stagedRow{row: row})
}

// ForEachRow visits every row of the table as seen by this transaction, in
// sorted id order.
func (tx *Tx) ForEachRow(table string, fn func(id string, row Row)) {
	rows := tx.effectiveRows(table)
	for _, id := range sortedIDs(rows) {
		fn(id, rows[id])
	}
}

// RowIDs returns the sorted row ids of the table as seen by this
// transaction.
func (tx *Tx) RowIDs(table string) []string {
	return sortedIDs(tx.effectiveRows(table))
}

// RowsWith returns the sorted ids of rows whose indexed cell equals key, as
// seen by this transaction.
func (tx *Tx) RowsWith(index string, key any) ([]string, error) {
	def, ok := tx.s.indexes[index]
	if !ok {
		return nil, fmt.Errorf("rows with: unknown index %q", index)
	}
	var ids []string
	for id, row := range tx.effectiveRows(def.table) {
		if cellEqual(row[def.cell], key) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetValue returns a keyed value as seen by this transaction.
func (tx *Tx) GetValue(key string) (any, bool) {
	if sv, ok := tx.values[key]; ok {
		if sv.deleted {
			return nil, false
		}
		return sv.value, true
	}
	v, ok := tx.s.values[key]
	return v, ok
}

// SetValue stages a keyed value write.
func (tx *Tx) SetValue(key string, v any) {
	tx.values[key] = stagedValue{value: v}
}

// DelValue stages a keyed value deletion.
func (tx *Tx) DelValue(key string) {
	tx.values[key] = stagedValue{deleted: true}
}

func (tx *Tx) stage(table, id string, sr stagedRow) {
	t, ok := tx.staged[table]
	if !ok {
		t = make(map[string]stagedRow)
		tx.staged[table] = t
	}
	t[id] = sr
}

func (tx *Tx) stagedFor(table, id string) (stagedRow, bool) {
	t, ok := tx.staged[table]
	if !ok {
		return stagedRow{}, false
	}
	sr, ok := t[id]
	return sr, ok
}

func (tx *Tx) effectiveRows(table string) map[string]Row {
	rows := make(map[string]Row, len(tx.s.tables[table]))
	for id, row := range tx.s.tables[table] {
		rows[id] = cloneRow(row)
	}
	for id, sr := range tx.staged[table] {
		if sr.deleted {
			delete(rows, id)
			continue
		}
		rows[id] = cloneRow(sr.row)
	}
	return rows
}

// commit applies every staged write and returns the cell-level diff
// (table -> row id -> changed cells, nil for a deleted row) together with
// the sorted keys of every keyed value that changed. Writes that do not
// change stored content produce no diff entry.
func (tx *Tx) commit() (map[string]map[string]any, []string) {
	changes := make(map[string]map[string]any)

	record := func(table, id string, diff any) {
		t, ok := changes[table]
		if !ok {
			t = make(map[string]any)
			changes[table] = t
		}
		t[id] = diff
	}

	for table, staged := range tx.staged {
		for id, sr := range staged {
			current, exists := tx.s.tables[table][id]

			if sr.deleted {
				if !exists {
					continue
				}
				delete(tx.s.tables[table], id)
				if len(tx.s.tables[table]) == 0 {
					delete(tx.s.tables, table)
				}
				record(table, id, nil)
				continue
			}

			diff := rowDiff(current, sr.row)
			if exists && len(diff) == 0 {
				continue
			}
			if tx.s.tables[table] == nil {
				tx.s.tables[table] = make(map[string]Row)
			}
			tx.s.tables[table][id] = cloneRow(sr.row)
			record(table, id, diff)
		}
	}

	var changedValues []string
	for key, sv := range tx.values {
		if sv.deleted {
			if _, ok := tx.s.values[key]; !ok {
				continue
			}
			delete(tx.s.values, key)
			changedValues = append(changedValues, key)
			continue
		}
		if old, ok := tx.s.values[key]; ok && cellEqual(old, sv.value) {
			continue
		}
		tx.s.values[key] = sv.value
		changedValues = append(changedValues, key)
	}
	sort.Strings(changedValues)

	return changes, changedValues
}

// rowDiff returns the cells of next that differ from prev, plus a nil entry
// for every cell of prev that next dropped.
func rowDiff(prev, next Row) map[string]any {
	diff := make(map[string]any)
	for k, v := range next {
		if old, ok := prev[k]; !ok || !cellEqual(old, v) {
			diff[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			diff[k] = nil
		}
	}
	return diff
}
