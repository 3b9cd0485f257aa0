package datastore

import (
	"context"

	"haxquest/internal/models"
)

func InsertAuditEntry(ctx context.Context, gw Gateway, entry *models.AdminAuditEntry) error {
	row, err := ToRow(entry)
	if err != nil {
		return err
	}
	_, err = gw.Upsert(ctx, TableAudit, []Row{row}, "id")
	return err
}

func ListAuditEntries(ctx context.Context, gw Gateway, limit int) ([]*models.AdminAuditEntry, error) {
	rows, err := gw.Get(ctx, TableAudit, Filter{}.Order("created_at", true).WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return FromRows[models.AdminAuditEntry](rows)
}

func ListAuditEntriesByAction(ctx context.Context, gw Gateway, action string, limit int) ([]*models.AdminAuditEntry, error) {
	rows, err := gw.Get(ctx, TableAudit, Where(Eq("action", action)).Order("created_at", true).WithLimit(limit))
	if err != nil {
		return nil, err
	}
	return FromRows[models.AdminAuditEntry](rows)
}
