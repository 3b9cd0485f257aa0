package datastore

import (
	"context"

	"haxquest/internal/models"
)

// InsertLedgerEntry appends entry unless its transaction_ref already exists.
func InsertLedgerEntry(ctx context.Context, gw Gateway, entry *models.LedgerEntry) (bool, error) {
	row, err := ToRow(entry)
	if err != nil {
		return false, err
	}
	inserted, err := gw.InsertIgnore(ctx, TableLedger, []Row{row}, "transaction_ref")
	if err != nil {
		return false, err
	}
	return len(inserted) == 1, nil
}

func GetLedgerEntryByRef(ctx context.Context, gw Gateway, ref string) (*models.LedgerEntry, error) {
	rows, err := gw.Get(ctx, TableLedger, Where(Eq("transaction_ref", ref)).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return FromRow[models.LedgerEntry](rows[0])
}

func ListLedgerEntries(ctx context.Context, gw Gateway, userID string, limit int) ([]*models.LedgerEntry, error) {
	rows, err := gw.Get(ctx, TableLedger, Where(Eq("user_id", userID)).Order("created_at", true).WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return FromRows[models.LedgerEntry](rows)
}

func SumLedgerCost(ctx context.Context, gw Gateway, userID string) (int64, error) {
	entries, err := ListLedgerEntries(ctx, gw, userID, 0)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.TotalCost
	}
	return total, nil
}
