package datastore

import (
	"context"
	"time"

	"haxquest/internal/models"
)

func GetReplayEntry(ctx context.Context, gw Gateway, key string) (*models.ReplayEntry, error) {
	rows, err := gw.Get(ctx, TableReplay, Where(Eq("key", key)).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return FromRow[models.ReplayEntry](rows[0])
}

func SaveReplayEntry(ctx context.Context, gw Gateway, entry *models.ReplayEntry) error {
	row, err := ToRow(entry)
	if err != nil {
		return err
	}
	_, err = gw.Upsert(ctx, TableReplay, []Row{row}, "key")
	return err
}

func ListReplayEntries(ctx context.Context, gw Gateway) ([]*models.ReplayEntry, error) {
	rows, err := gw.Get(ctx, TableReplay, Filter{})
	if err != nil {
		return nil, err
	}
	return FromRows[models.ReplayEntry](rows)
}

func DeleteExpiredReplayEntries(ctx context.Context, gw Gateway, now time.Time) (int, error) {
	return gw.Delete(ctx, TableReplay, Where(Lte("expires_at", now)))
}
