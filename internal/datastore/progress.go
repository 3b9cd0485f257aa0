package datastore

import (
	"context"
	"time"

	"haxquest/internal/models"
)

func GetProgress(ctx context.Context, gw Gateway, userID string) (*models.ProgressSnapshot, error) {
	rows, err := gw.Get(ctx, TableProgress, Where(Eq("user_id", userID)).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return FromRow[models.ProgressSnapshot](rows[0])
}

func SaveProgress(ctx context.Context, gw Gateway, progress *models.ProgressSnapshot) (*models.ProgressSnapshot, error) {
	row, err := ToRow(progress)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Upsert(ctx, TableProgress, []Row{row}, "user_id"); err != nil {
		return nil, err
	}
	return progress, nil
}

// ListProgressSince returns snapshots updated at or after since. A nil since means all.
func ListProgressSince(ctx context.Context, gw Gateway, since *time.Time) ([]*models.ProgressSnapshot, error) {
	filter := Filter{}
	if since != nil {
		filter = Where(Gte("updated_at", *since))
	}
	rows, err := gw.Get(ctx, TableProgress, filter)
	if err != nil {
		return nil, err
	}
	return FromRows[models.ProgressSnapshot](rows)
}

func ListRecentProgress(ctx context.Context, gw Gateway, limit int) ([]*models.ProgressSnapshot, error) {
	rows, err := gw.Get(ctx, TableProgress, Filter{}.Order("updated_at", true).WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return FromRows[models.ProgressSnapshot](rows)
}

func EvictProgress(ctx context.Context, gw Gateway, userID string) (int, bool, error) {
	evictor, ok := gw.(Evictor)
	if !ok {
		return 0, false, nil
	}
	n, err := evictor.Evict(ctx, TableProgress, Where(Eq("user_id", userID)))
	return n, true, err
}
