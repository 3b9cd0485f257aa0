package datastore

import (
	"context"
	"log/slog"
	"time"
)

// Fallback puts a durable primary behind an in-process mirror. Writes land in
// the mirror first; the primary is synced best-effort. Reads prefer the
// primary and fall back to the mirror on any failure.
type Fallback struct {
	primary Gateway
	mirror  *Memory
	timeout time.Duration
	status  *Status
	now     func() time.Time
}

func NewFallback(primary Gateway, mirror *Memory, timeout time.Duration, status *Status) *Fallback {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fallback{primary, mirror, timeout, status, time.Now}
}

func (f *Fallback) Mirror() *Memory {
	return f.mirror
}

func (f *Fallback) fail(op string, table Table, err error) {
	f.status.recordError(err, f.now().UTC())
	slog.Warn("remote storage call failed, using memory", "op", op, "table", table, "error", err)
}

func (f *Fallback) Get(ctx context.Context, table Table, filter Filter) ([]Row, error) {
	rctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.status.recordCall()
	rows, err := f.primary.Get(rctx, table, filter)
	if err != nil {
		f.fail("get", table, err)
		return f.mirror.Get(ctx, table, filter)
	}
	if len(rows) > 0 {
		// warm the mirror without clobbering newer local writes
		//nolint:errcheck
		f.mirror.InsertIgnore(ctx, table, rows)
	}
	return rows, nil
}

func (f *Fallback) Upsert(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	written, err := f.mirror.Upsert(ctx, table, rows, conflict...)
	if err != nil {
		return nil, err
	}
	f.sync(ctx, "upsert", table, func(rctx context.Context) error {
		_, err := f.primary.Upsert(rctx, table, written, conflict...)
		return err
	})
	return written, nil
}

func (f *Fallback) InsertIgnore(ctx context.Context, table Table, rows []Row, conflict ...string) ([]Row, error) {
	inserted, err := f.mirror.InsertIgnore(ctx, table, rows, conflict...)
	if err != nil {
		return nil, err
	}
	if len(inserted) == 0 {
		return inserted, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	f.status.recordCall()
	remote, err := f.primary.InsertIgnore(rctx, table, inserted, conflict...)
	if err != nil {
		f.fail("insert", table, err)
		return inserted, nil
	}
	if len(remote) < len(inserted) {
		// the primary already held some of these keys; keep only what it accepted
		accepted := make(map[string]bool, len(remote))
		columns, _ := conflictColumns(table, conflict)
		for _, row := range remote {
			if k, err := rowKey(row, columns); err == nil {
				accepted[k] = true
			}
		}
		kept := inserted[:0]
		for _, row := range inserted {
			k, err := rowKey(row, columns)
			if err == nil && accepted[k] {
				kept = append(kept, row)
				continue
			}
			f.evictRow(ctx, table, row)
		}
		return kept, nil
	}
	return inserted, nil
}

func (f *Fallback) evictRow(ctx context.Context, table Table, row Row) {
	conds := make([]Condition, 0, len(Specs[table].Key))
	for _, c := range Specs[table].Key {
		conds = append(conds, Eq(c, row[c]))
	}
	//nolint:errcheck
	f.mirror.Delete(ctx, table, Where(conds...))
}

func (f *Fallback) Delete(ctx context.Context, table Table, filter Filter) (int, error) {
	deleted, err := f.mirror.Delete(ctx, table, filter)
	if err != nil {
		return 0, err
	}
	f.sync(ctx, "delete", table, func(rctx context.Context) error {
		_, err := f.primary.Delete(rctx, table, filter)
		return err
	})
	return deleted, nil
}

func (f *Fallback) Evict(ctx context.Context, table Table, filter Filter) (int, error) {
	return f.mirror.Evict(ctx, table, filter)
}

// sync runs a primary write detached from the caller's cancellation; the
// mirror already holds the data, so the outcome only feeds diagnostics.
func (f *Fallback) sync(ctx context.Context, op string, table Table, call func(ctx context.Context) error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	f.status.recordCall()
	if err := call(rctx); err != nil {
		f.fail(op, table, err)
	}
}
