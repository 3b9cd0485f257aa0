package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres runs the gateway contract directly against postgres through bun.
type Postgres struct {
	db     *bun.DB
	tables TableNames
}

func NewPostgres(db *bun.DB, tables TableNames) *Postgres {
	if tables == nil {
		tables = DefaultTableNames()
	}
	return &Postgres{db: db, tables: tables}
}

func (p *Postgres) Get(ctx context.Context, table Table, filter Filter) ([]Row, error) {
	name, err := p.tables.Name(table)
	if err != nil {
		return nil, err
	}

	q := p.db.NewSelect().TableExpr("?", bun.Ident(name))
	for _, c := range filter.Where {
		expr, err := conditionExpr(c)
		if err != nil {
			return nil, err
		}
		q = q.Where(expr, bun.Ident(c.Column), c.Value)
	}
	if filter.OrderBy != "" {
		if filter.Desc {
			q = q.OrderExpr("? DESC", bun.Ident(filter.OrderBy))
		} else {
			q = q.OrderExpr("? ASC", bun.Ident(filter.OrderBy))
		}
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var records []map[string]interface{}
	if err := q.Scan(ctx, &records); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	spec := Specs[table]
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row(rec)
		decodeJSONColumns(row, spec.JSONColumns)
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Postgres) Upsert(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return p.write(ctx, table, rows, conflict, true)
}

func (p *Postgres) InsertIgnore(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	return p.write(ctx, table, rows, conflict, false)
}

func (p *Postgres) write(ctx context.Context, table Table, rows []Row, conflict []string, overwrite bool) ([]Row, error) {
	name, err := p.tables.Name(table)
	if err != nil {
		return nil, err
	}
	columns, err := conflictColumns(table, conflict)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if !columnPattern.MatchString(c) {
			return nil, fmt.Errorf("invalid conflict column %q", c)
		}
	}
	target := strings.Join(columns, ", ")

	written := make([]Row, 0, len(rows))
	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, row := range rows {
			values, err := sqlValues(row)
			if err != nil {
				return err
			}

			q := tx.NewInsert().Model(&values).TableExpr("?", bun.Ident(name))
			updates := 0
			if overwrite {
				for col := range values {
					if contains(columns, col) {
						continue
					}
					q = q.Set("? = EXCLUDED.?", bun.Ident(col), bun.Ident(col))
					updates++
				}
			}
			if updates > 0 {
				q = q.On("CONFLICT (?) DO UPDATE", bun.Safe(target))
			} else {
				q = q.On("CONFLICT (?) DO NOTHING", bun.Safe(target))
			}

			res, err := q.Exec(ctx)
			if err != nil {
				return err
			}
			if !overwrite {
				if n, err := res.RowsAffected(); err == nil && n == 0 {
					continue
				}
			}
			written = append(written, row.clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (p *Postgres) Delete(ctx context.Context, table Table, filter Filter) (int, error) {
	if len(filter.Where) == 0 {
		return 0, ErrEmptyFilter
	}
	name, err := p.tables.Name(table)
	if err != nil {
		return 0, err
	}

	q := p.db.NewDelete().TableExpr("?", bun.Ident(name))
	for _, c := range filter.Where {
		expr, err := conditionExpr(c)
		if err != nil {
			return 0, err
		}
		q = q.Where(expr, bun.Ident(c.Column), c.Value)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func conditionExpr(c Condition) (string, error) {
	if !columnPattern.MatchString(c.Column) {
		return "", fmt.Errorf("invalid column %q", c.Column)
	}
	switch c.Op {
	case OpEq:
		return "? = ?", nil
	case OpLte:
		return "? <= ?", nil
	case OpGte:
		return "? >= ?", nil
	}
	return "", fmt.Errorf("unsupported operator %q", c.Op)
}

// sqlValues encodes nested values as json text so they land in jsonb columns.
func sqlValues(row Row) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(row))
	for k, v := range row {
		if !columnPattern.MatchString(k) {
			return nil, fmt.Errorf("invalid column %q", k)
		}
		switch v.(type) {
		case []any, map[string]any:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			values[k] = string(b)
		default:
			values[k] = v
		}
	}
	return values, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
