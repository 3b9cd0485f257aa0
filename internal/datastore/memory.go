package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryTable struct {
	mu    sync.RWMutex
	spec  TableSpec
	rows  map[string]Row
	order []string
}

// Memory is the in-process backend. Every table has its own lock.
type Memory struct {
	tables map[Table]*memoryTable
}

func NewMemory() *Memory {
	m := &Memory{tables: make(map[Table]*memoryTable, len(Specs))}
	for t, spec := range Specs {
		m.tables[t] = &memoryTable{spec: spec, rows: make(map[string]Row)}
	}
	return m
}

func (m *Memory) table(t Table) (*memoryTable, error) {
	mt, ok := m.tables[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, t)
	}
	return mt, nil
}

func (m *Memory) Get(_ context.Context, table Table, filter Filter) ([]Row, error) {
	mt, err := m.table(table)
	if err != nil {
		return nil, err
	}

	mt.mu.RLock()
	rows := make([]Row, 0)
	for _, k := range mt.order {
		row := mt.rows[k]
		if filter.Match(row) {
			rows = append(rows, row.clone())
		}
	}
	mt.mu.RUnlock()

	if filter.OrderBy != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			cmp, ok := compareValues(rows[i][filter.OrderBy], rows[j][filter.OrderBy])
			if !ok {
				return false
			}
			if filter.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func (m *Memory) Upsert(_ context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return m.write(table, rows, conflict, true)
}

func (m *Memory) InsertIgnore(_ context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return m.write(table, rows, conflict, false)
}

func (m *Memory) write(table Table, rows []Row, conflict []string, overwrite bool) ([]Row, error) {
	mt, err := m.table(table)
	if err != nil {
		return nil, err
	}
	columns, err := conflictColumns(table, conflict)
	if err != nil {
		return nil, err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	written := make([]Row, 0, len(rows))
	for _, row := range rows {
		storageKey, err := rowKey(row, mt.spec.Key)
		if err != nil {
			return written, err
		}
		existing, err := mt.find(row, columns)
		if err != nil {
			return written, err
		}
		if existing != "" && !overwrite {
			continue
		}
		if existing != "" && existing != storageKey {
			mt.remove(existing)
		}
		if _, ok := mt.rows[storageKey]; !ok {
			mt.order = append(mt.order, storageKey)
		}
		mt.rows[storageKey] = row.clone()
		written = append(written, row.clone())
	}
	mt.trim()
	return written, nil
}

// find returns the storage key of the row that conflicts with row on columns.
func (mt *memoryTable) find(row Row, columns []string) (string, error) {
	if sameColumns(columns, mt.spec.Key) {
		k, err := rowKey(row, columns)
		if err != nil {
			return "", err
		}
		if _, ok := mt.rows[k]; ok {
			return k, nil
		}
		return "", nil
	}
	want, err := rowKey(row, columns)
	if err != nil {
		return "", err
	}
	for _, k := range mt.order {
		if got, err := rowKey(mt.rows[k], columns); err == nil && got == want {
			return k, nil
		}
	}
	return "", nil
}

func (mt *memoryTable) remove(key string) {
	delete(mt.rows, key)
	for i, k := range mt.order {
		if k == key {
			mt.order = append(mt.order[:i], mt.order[i+1:]...)
			return
		}
	}
}

func (mt *memoryTable) trim() {
	if mt.spec.Capacity <= 0 {
		return
	}
	for len(mt.order) > mt.spec.Capacity {
		delete(mt.rows, mt.order[0])
		mt.order = mt.order[1:]
	}
}

func (m *Memory) Delete(_ context.Context, table Table, filter Filter) (int, error) {
	if len(filter.Where) == 0 {
		return 0, ErrEmptyFilter
	}
	mt, err := m.table(table)
	if err != nil {
		return 0, err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	kept := mt.order[:0]
	deleted := 0
	for _, k := range mt.order {
		if filter.Match(mt.rows[k]) {
			delete(mt.rows, k)
			deleted++
			continue
		}
		kept = append(kept, k)
	}
	mt.order = kept
	return deleted, nil
}

func (m *Memory) Evict(ctx context.Context, table Table, filter Filter) (int, error) {
	return m.Delete(ctx, table, filter)
}

func (m *Memory) Len(table Table) int {
	mt, err := m.table(table)
	if err != nil {
		return 0
	}
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return len(mt.order)
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
