package datastore

import (
	"context"

	"github.com/uptrace/bun"

	"haxquest/internal/models"
)

func CreateTableProgress(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.ProgressSnapshot)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.ProgressSnapshot)(nil)).Index("index_progress_updated_at").IfNotExists().Column("updated_at").Exec(ctx)
	return err
}

func CreateTableAdminAudit(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.AdminAuditEntry)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.AdminAuditEntry)(nil)).Index("index_admin_audit_created_at").IfNotExists().Column("created_at").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.AdminAuditEntry)(nil)).Index("index_admin_audit_action").IfNotExists().Column("action", "created_at").Exec(ctx)
	return err
}

func CreateTableReplay(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.ReplayEntry)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.ReplayEntry)(nil)).Index("index_replay_expires_at").IfNotExists().Column("expires_at").Exec(ctx)
	return err
}

func CreateTableLedger(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.LedgerEntry)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.LedgerEntry)(nil)).Index("index_ledger_transaction_ref").IfNotExists().Unique().Column("transaction_ref").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.LedgerEntry)(nil)).Index("index_ledger_user_id_created_at").IfNotExists().Column("user_id", "created_at").Exec(ctx)
	return err
}

func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, create := range []func(context.Context, *bun.DB) error{
		CreateTableProgress,
		CreateTableAdminAudit,
		CreateTableReplay,
		CreateTableLedger,
	} {
		if err := create(ctx, db); err != nil {
			return err
		}
	}
	return nil
}
