package services

import (
	"context"
	"sort"
	"unicode/utf8"

	"haxquest/internal/datastore"
	"haxquest/internal/models"
	"haxquest/internal/pkg"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const (
	AUDIT_ACTION_SEASON_PAYOUT   = "season-payout"
	AUDIT_ACTION_AUTO_PURGE      = "auto-purge-replay-critical"
	AUDIT_ACTION_SCHEDULED_PURGE = "scheduled-purge-replay"
	AUDIT_MODE_CRON              = "cron"
	AUDIT_MODE_SYSTEM            = "system"
)

// Actor identifies who triggered an audited action.
type Actor struct {
	Mode string
	IP   string
}

type ServiceAudit struct {
	container *do.Injector
	gateway   datastore.Gateway
	clock     pkg.Clock
}

func NewServiceAudit(container *do.Injector) (*ServiceAudit, error) {
	gateway, err := do.Invoke[datastore.Gateway](container)
	if err != nil {
		return nil, err
	}

	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	return &ServiceAudit{container, gateway, clock}, nil
}

func (service *ServiceAudit) Record(ctx context.Context, entry *models.AdminAuditEntry) (*models.AdminAuditEntry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = service.clock.Now()
	entry.Note = truncateRunes(entry.Note, AUDIT_NOTE_MAX_RUNES)
	if err := datastore.InsertAuditEntry(ctx, service.gateway, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the newest entries first.
func (service *ServiceAudit) List(ctx context.Context, limit int) ([]*models.AdminAuditEntry, error) {
	return datastore.ListAuditEntries(ctx, service.gateway, clampLimit(limit, AUDIT_DEFAULT_LIMIT, AUDIT_MAX_LIMIT))
}

// LastByAction returns the newest entry carrying any of actions, or nil.
func (service *ServiceAudit) LastByAction(ctx context.Context, actions ...string) (*models.AdminAuditEntry, error) {
	entries, err := service.byActions(ctx, 1, actions...)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// RecentPurges lists replay purges, manual or automatic, newest first.
func (service *ServiceAudit) RecentPurges(ctx context.Context, n int) ([]models.PurgeRecord, error) {
	entries, err := service.byActions(ctx, n, string(ActionPurgeReplay), AUDIT_ACTION_AUTO_PURGE, AUDIT_ACTION_SCHEDULED_PURGE)
	if err != nil {
		return nil, err
	}
	out := make([]models.PurgeRecord, 0, len(entries))
	for _, e := range entries {
		if e.Details == nil || e.Details.Purge == nil {
			continue
		}
		out = append(out, models.PurgeRecord{At: e.CreatedAt, Deleted: e.Details.Purge.Deleted})
	}
	return out, nil
}

func (service *ServiceAudit) PayoutHistory(ctx context.Context, n int) ([]*models.PayoutRun, error) {
	entries, err := service.byActions(ctx, n, AUDIT_ACTION_SEASON_PAYOUT)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PayoutRun, 0, len(entries))
	for _, e := range entries {
		if e.Details == nil || e.Details.Payout == nil {
			continue
		}
		out = append(out, &models.PayoutRun{At: e.CreatedAt, Details: *e.Details.Payout})
	}
	return out, nil
}

func (service *ServiceAudit) byActions(ctx context.Context, limit int, actions ...string) ([]*models.AdminAuditEntry, error) {
	var all []*models.AdminAuditEntry
	for _, action := range actions {
		entries, err := datastore.ListAuditEntriesByAction(ctx, service.gateway, action, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
