package datastore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := m.Upsert(ctx, TableReplay, []Row{{
			"key":        fmt.Sprintf("k%d", i),
			"status":     200,
			"expires_at": base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
		}})
		require.NoError(t, err)
	}

	rows, err := m.Get(ctx, TableReplay, Where(Eq("key", "k2")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 200, rows[0]["status"])

	_, err = m.Upsert(ctx, TableReplay, []Row{{"key": "k2", "status": 409, "expires_at": base.Format(time.RFC3339Nano)}})
	require.NoError(t, err)
	require.Equal(t, 4, m.Len(TableReplay))

	rows, err = m.Get(ctx, TableReplay, Where(Lte("expires_at", base.Add(time.Minute))).Order("key", false))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "k0", rows[0]["key"])
	require.Equal(t, "k1", rows[1]["key"])
	require.Equal(t, "k2", rows[2]["key"])

	deleted, err := m.Delete(ctx, TableReplay, Where(Lte("expires_at", base.Add(time.Minute))))
	require.NoError(t, err)
	require.Equal(t, 3, deleted)
	require.Equal(t, 1, m.Len(TableReplay))

	_, err = m.Delete(ctx, TableReplay, Filter{})
	require.ErrorIs(t, err, ErrEmptyFilter)
}

func TestMemory_InsertIgnoreOnSecondaryKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	inserted, err := m.InsertIgnore(ctx, TableLedger, []Row{{"id": "a", "transaction_ref": "ref-1", "total_cost": 5}}, "transaction_ref")
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	inserted, err = m.InsertIgnore(ctx, TableLedger, []Row{{"id": "b", "transaction_ref": "ref-1", "total_cost": 9}}, "transaction_ref")
	require.NoError(t, err)
	require.Empty(t, inserted)

	rows, err := m.Get(ctx, TableLedger, Where(Eq("transaction_ref", "ref-1")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0]["id"])
}

func TestMemory_CapacityKeepsNewest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < AuditMemoryCapacity+10; i++ {
		_, err := m.Upsert(ctx, TableAudit, []Row{{"id": fmt.Sprintf("a%03d", i), "action": "purge-replay"}})
		require.NoError(t, err)
	}
	require.Equal(t, AuditMemoryCapacity, m.Len(TableAudit))

	rows, err := m.Get(ctx, TableAudit, Where(Eq("id", "a000")))
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = m.Get(ctx, TableAudit, Where(Eq("id", fmt.Sprintf("a%03d", AuditMemoryCapacity+9))))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMemory_UnknownTable(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), Table("nope"), Filter{})
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestCompareValues(t *testing.T) {
	at := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	cmp, ok := compareValues(at.Add(time.Second).Format(time.RFC3339Nano), at)
	require.True(t, ok)
	require.Equal(t, 1, cmp)

	// differing fractional precision must still order by instant
	cmp, ok = compareValues("2026-10-15T00:00:00.5Z", "2026-10-15T00:00:00.25Z")
	require.True(t, ok)
	require.Equal(t, 1, cmp)

	cmp, ok = compareValues(float64(3), 3)
	require.True(t, ok)
	require.Equal(t, 0, cmp)

	_, ok = compareValues("abc", 3)
	require.False(t, ok)
}
