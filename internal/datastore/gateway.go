package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownTable = errors.New("unknown table")
	ErrMissingKey   = errors.New("row is missing a conflict key column")
	ErrEmptyFilter  = errors.New("delete requires at least one condition")
)

type Table string

const (
	TableProgress Table = "progress"
	TableAudit    Table = "audit"
	TableReplay   Table = "replay"
	TableLedger   Table = "ledger"
)

const AuditMemoryCapacity = 150

type TableSpec struct {
	Key         []string
	JSONColumns []string
	// Capacity bounds the in-process copy of the table. Zero means unbounded.
	Capacity int
}

var Specs = map[Table]TableSpec{
	TableProgress: {Key: []string{"user_id"}, JSONColumns: []string{"completed_task_ids", "daily_quest"}},
	TableAudit:    {Key: []string{"id"}, JSONColumns: []string{"details"}, Capacity: AuditMemoryCapacity},
	TableReplay:   {Key: []string{"key"}},
	TableLedger:   {Key: []string{"id"}},
}

// TableNames maps logical tables to their physical names on a remote backend.
type TableNames map[Table]string

func DefaultTableNames() TableNames {
	return TableNames{
		TableProgress: "progress_snapshots",
		TableAudit:    "admin_audit_log",
		TableReplay:   "admin_action_replay",
		TableLedger:   "economy_ledger",
	}
}

func (names TableNames) Name(t Table) (string, error) {
	if name, ok := names[t]; ok && name != "" {
		return name, nil
	}
	if name, ok := DefaultTableNames()[t]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTable, t)
}

type Row map[string]any

func (r Row) clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

type Op string

const (
	OpEq  Op = "eq"
	OpLte Op = "lte"
	OpGte Op = "gte"
)

type Condition struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Condition  { return Condition{column, OpEq, value} }
func Lte(column string, value any) Condition { return Condition{column, OpLte, value} }
func Gte(column string, value any) Condition { return Condition{column, OpGte, value} }

// Filter is a conjunction of conditions with optional ordering and limit.
type Filter struct {
	Where   []Condition
	OrderBy string
	Desc    bool
	Limit   int
}

func Where(conds ...Condition) Filter {
	return Filter{Where: conds}
}

func (f Filter) Order(column string, desc bool) Filter {
	f.OrderBy = column
	f.Desc = desc
	return f
}

func (f Filter) WithLimit(limit int) Filter {
	f.Limit = limit
	return f
}

func (f Filter) Match(row Row) bool {
	for _, c := range f.Where {
		v, ok := row[c.Column]
		if !ok {
			return false
		}
		cmp, ok := compareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Gateway is the storage contract every component depends on.
type Gateway interface {
	Get(ctx context.Context, table Table, filter Filter) ([]Row, error)
	Upsert(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error)
	// InsertIgnore inserts rows whose conflict key is not present yet and
	// returns only the rows that were inserted.
	InsertIgnore(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error)
	Delete(ctx context.Context, table Table, filter Filter) (int, error)
}

// Evictor drops rows from an in-process copy without touching durable storage.
type Evictor interface {
	Evict(ctx context.Context, table Table, filter Filter) (int, error)
}

func conflictColumns(table Table, conflict []string) ([]string, error) {
	if len(conflict) > 0 {
		return conflict, nil
	}
	spec, ok := Specs[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return spec.Key, nil
}

func rowKey(row Row, columns []string) (string, error) {
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		v, ok := row[c]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, c)
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "\x1f"), nil
}
