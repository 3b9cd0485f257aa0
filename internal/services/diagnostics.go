package services

import (
	"context"
	"fmt"
	"time"

	"haxquest/internal/datastore"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/scoring"

	"github.com/samber/do"
)

const READINESS_RECENT_ERROR_WINDOW = 5 * time.Minute

type ServiceDiagnostics struct {
	container *do.Injector
	status    *datastore.Status
	clock     pkg.Clock
	settings  *Settings
	catalog   *scoring.Catalog

	serviceProgress *ServiceProgress
	serviceAudit    *ServiceAudit
	serviceSLO      *ServiceSLO
	servicePayout   *ServicePayout
}

func NewServiceDiagnostics(container *do.Injector) (*ServiceDiagnostics, error) {
	status, err := do.Invoke[*datastore.Status](container)
	if err != nil {
		return nil, err
	}

	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	catalog, err := do.Invoke[*scoring.Catalog](container)
	if err != nil {
		return nil, err
	}

	serviceProgress, err := do.Invoke[*ServiceProgress](container)
	if err != nil {
		return nil, err
	}

	serviceAudit, err := do.Invoke[*ServiceAudit](container)
	if err != nil {
		return nil, err
	}

	serviceSLO, err := do.Invoke[*ServiceSLO](container)
	if err != nil {
		return nil, err
	}

	servicePayout, err := do.Invoke[*ServicePayout](container)
	if err != nil {
		return nil, err
	}

	return &ServiceDiagnostics{container, status, clock, settings, catalog, serviceProgress, serviceAudit, serviceSLO, servicePayout}, nil
}

// Overview assembles the admin dashboard. Reading it also runs one step of
// the auto-remediation loop.
func (service *ServiceDiagnostics) Overview(ctx context.Context) (*models.Overview, error) {
	recent, err := service.serviceProgress.Recent(ctx, OVERVIEW_SAMPLE_LIMIT)
	if err != nil {
		return nil, err
	}

	audit, err := service.serviceAudit.List(ctx, AUDIT_DEFAULT_LIMIT)
	if err != nil {
		return nil, err
	}

	stats, slo, err := service.serviceSLO.Check(ctx)
	if err != nil {
		return nil, err
	}

	remediation, err := service.serviceSLO.MaybeAutoRemediate(ctx, slo)
	if err != nil {
		return nil, err
	}
	if remediation.Attempted {
		// the purge changed the backlog the first reading was based on
		if stats, slo, err = service.serviceSLO.Check(ctx); err != nil {
			return nil, err
		}
	}

	payouts, err := service.servicePayout.Summary(ctx)
	if err != nil {
		return nil, err
	}

	storage := service.status.Snapshot()
	return &models.Overview{
		GeneratedAt:     service.clock.Now(),
		Storage:         storage,
		RecentProgress:  recent,
		Audit:           audit,
		Replay:          *stats,
		SLO:             slo,
		AutoRemediation: *remediation,
		Readiness:       service.Readiness(storage, slo),
		Payouts:         *payouts,
	}, nil
}

func (service *ServiceDiagnostics) Readiness(storage models.StorageStatus, slo models.SLOStatus) []*models.ReadinessCheck {
	now := service.clock.Now()
	checks := []*models.ReadinessCheck{
		{
			Name:   "storage_mode",
			OK:     !storage.Fallback,
			Detail: fmt.Sprintf("configured=%q active=%s", storage.ConfiguredMode, storage.Mode),
		},
		{
			Name:   "remote_healthy",
			OK:     storage.LastErrorAt == nil || now.Sub(*storage.LastErrorAt) > READINESS_RECENT_ERROR_WINDOW,
			Detail: storage.LastError,
		},
		{
			Name:   "admin_credentials",
			OK:     service.settings.AdminAPIKey != "" || service.settings.AdminBearerToken != "" || service.settings.CronSecret != "",
			Detail: "at least one of ADMIN_API_KEY, ADMIN_BEARER_TOKEN, CRON_SECRET",
		},
		{
			Name:   "payout_plan",
			OK:     len(service.settings.PayoutPlan) > 0,
			Detail: fmt.Sprintf("%d ranks", len(service.settings.PayoutPlan)),
		},
		{
			Name:   "task_catalog",
			OK:     service.catalog.Len() > 0,
			Detail: fmt.Sprintf("%d tasks", service.catalog.Len()),
		},
		{
			Name:   "replay_slo",
			OK:     slo.Level != models.SLOCritical,
			Detail: string(slo.Level),
		},
		{
			Name:   "configuration",
			OK:     len(service.settings.Problems) == 0,
			Detail: fmt.Sprintf("%d values fell back to defaults", len(service.settings.Problems)),
		},
	}
	if storage.Mode == datastore.ModeMemory {
		checks[1].Detail = "memory mode, no remote"
	}
	return checks
}
