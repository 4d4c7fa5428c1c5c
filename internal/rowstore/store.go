package rowstore

import (
	"fmt"
	"sort"
	"sync"
)

// Row is a single record: cell name -> JSON scalar value.
type Row map[string]any

// Listener receives the raw commit payload [changes, meta, version].
//
// Listeners are invoked synchronously under the store lock so that delivery
// order equals commit order. A listener must not call back into the store;
// it should extract what it needs and enqueue for later processing.
type Listener func(payload []any)

// Store is an in-memory table-of-tables store with serialized transactions,
// keyed values, secondary indexes and commit notifications.
type Store struct {
	mu        sync.Mutex
	tables    map[string]map[string]Row
	values    map[string]any
	indexes   map[string]indexDef
	listeners []Listener
	version   int64
}

type indexDef struct {
	table string
	cell  string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables:  make(map[string]map[string]Row),
		values:  make(map[string]any),
		indexes: make(map[string]indexDef),
	}
}

// OnCommit registers a listener for commit payloads. See Listener for the
// reentrancy contract.
func (s *Store) OnCommit(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RegisterIndex declares a secondary index over one cell of one table.
// RowsWith looks rows up by index name. Registering the same name twice
// returns an error.
func (s *Store) RegisterIndex(name, table, cell string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[name]; exists {
		return fmt.Errorf("register index: %q already registered", name)
	}
	s.indexes[name] = indexDef{table: table, cell: cell}
	return nil
}

// GetRow returns a copy of the row, or nil if it does not exist.
func (s *Store) GetRow(table, id string) Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRow(s.tables[table][id])
}

// GetCell returns a single cell value and whether it exists.
func (s *Store) GetCell(table, id, cell string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][id]
	if !ok {
		return nil, false
	}
	v, ok := row[cell]
	return v, ok
}

// HasRow reports whether the row exists.
func (s *Store) HasRow(table, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[table][id]
	return ok
}

// RowIDs returns the ids of every row in the table, sorted for
// deterministic iteration.
func (s *Store) RowIDs(table string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.tables[table])
}

// ForEachRow visits every row of the table in sorted id order. The visited
// rows are copies; mutating them does not affect the store.
func (s *Store) ForEachRow(table string, fn func(id string, row Row)) {
	s.mu.Lock()
	rows := make(map[string]Row, len(s.tables[table]))
	for id, row := range s.tables[table] {
		rows[id] = cloneRow(row)
	}
	s.mu.Unlock()

	for _, id := range sortedIDs(rows) {
		fn(id, rows[id])
	}
}

// RowsWith returns the sorted ids of rows whose indexed cell equals key.
func (s *Store) RowsWith(index string, key any) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.indexes[index]
	if !ok {
		return nil, fmt.Errorf("rows with: unknown index %q", index)
	}
	var ids []string
	for id, row := range s.tables[def.table] {
		if cellEqual(row[def.cell], key) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetValue returns a keyed store value and whether it exists.
func (s *Store) GetValue(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Version returns the current commit counter.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetRow writes a full row in a single-operation transaction.
func (s *Store) SetRow(table, id string, row Row) error {
	return s.Transaction(func(tx *Tx) error {
		tx.SetRow(table, id, row)
		return nil
	})
}

// SetPartialRow merges cells into a row in a single-operation transaction.
func (s *Store) SetPartialRow(table, id string, cells Row) error {
	return s.Transaction(func(tx *Tx) error {
		tx.SetPartialRow(table, id, cells)
		return nil
	})
}

// DelRow deletes a row in a single-operation transaction.
func (s *Store) DelRow(table, id string) error {
	return s.Transaction(func(tx *Tx) error {
		tx.DelRow(table, id)
		return nil
	})
}

// SetValue writes a keyed value in a single-operation transaction.
func (s *Store) SetValue(key string, v any) error {
	return s.Transaction(func(tx *Tx) error {
		tx.SetValue(key, v)
		return nil
	})
}

func sortedIDs(rows map[string]Row) []string {
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneRow(row Row) Row {
	if row == nil {
		return nil
	}
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// cellEqual compares two cell values. Cells are JSON scalars, so plain
// interface equality is sufficient; non-comparable values never match.
func cellEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
