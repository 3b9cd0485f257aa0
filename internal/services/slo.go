package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg"

	"github.com/samber/do"
)

const (
	SLO_EXPIRED_WARN         = 25
	SLO_EXPIRED_CRITICAL     = 100
	SLO_RATIO_WARN           = 0.5
	SLO_RATIO_CRITICAL       = 0.8
	SLO_RATIO_MIN_TOTAL      = 10
	SLO_SINCE_PURGE_WARN     = 6 * time.Hour
	SLO_SINCE_PURGE_CRITICAL = 24 * time.Hour
	SLO_AVG_PURGE_WARN       = 50
	SLO_AVG_PURGE_CRITICAL   = 200

	REMEDIATION_DISABLED     = "disabled"
	REMEDIATION_NOT_CRITICAL = "not_critical"
	REMEDIATION_COOLDOWN     = "cooldown"
	REMEDIATION_PURGED       = "purged"
)

// ComputeSLO classifies replay backlog health. purges are newest first; only
// the first SLO_PURGE_WINDOW count toward the average.
func ComputeSLO(stats *models.ReplayStats, purges []models.PurgeRecord, now time.Time) models.SLOStatus {
	out := models.SLOStatus{Level: models.SLOOk, Reasons: []string{}, CheckedAt: now}
	raise := func(level models.SLOLevel, reason string) {
		out.Reasons = append(out.Reasons, reason)
		if level == models.SLOCritical || out.Level == models.SLOOk {
			out.Level = level
		}
	}

	switch {
	case stats.Expired >= SLO_EXPIRED_CRITICAL:
		raise(models.SLOCritical, fmt.Sprintf("expired replay entries %d >= %d", stats.Expired, SLO_EXPIRED_CRITICAL))
	case stats.Expired >= SLO_EXPIRED_WARN:
		raise(models.SLOWarn, fmt.Sprintf("expired replay entries %d >= %d", stats.Expired, SLO_EXPIRED_WARN))
	}

	if stats.Total >= SLO_RATIO_MIN_TOTAL {
		switch {
		case stats.ExpiredRatio >= SLO_RATIO_CRITICAL:
			raise(models.SLOCritical, fmt.Sprintf("expired ratio %.2f >= %.2f", stats.ExpiredRatio, SLO_RATIO_CRITICAL))
		case stats.ExpiredRatio >= SLO_RATIO_WARN:
			raise(models.SLOWarn, fmt.Sprintf("expired ratio %.2f >= %.2f", stats.ExpiredRatio, SLO_RATIO_WARN))
		}
	}

	if stats.Expired > 0 {
		if len(purges) == 0 {
			raise(models.SLOWarn, "replay cache never purged")
		} else {
			since := now.Sub(purges[0].At)
			switch {
			case since > SLO_SINCE_PURGE_CRITICAL:
				raise(models.SLOCritical, fmt.Sprintf("last purge %s ago > %s", since.Round(time.Minute), SLO_SINCE_PURGE_CRITICAL))
			case since > SLO_SINCE_PURGE_WARN:
				raise(models.SLOWarn, fmt.Sprintf("last purge %s ago > %s", since.Round(time.Minute), SLO_SINCE_PURGE_WARN))
			}
		}
	}

	if len(purges) > 0 {
		window := purges
		if len(window) > SLO_PURGE_WINDOW {
			window = window[:SLO_PURGE_WINDOW]
		}
		total := 0
		for _, p := range window {
			total += p.Deleted
		}
		avg := float64(total) / float64(len(window))
		switch {
		case avg >= SLO_AVG_PURGE_CRITICAL:
			raise(models.SLOCritical, fmt.Sprintf("average purge size %.1f >= %d", avg, SLO_AVG_PURGE_CRITICAL))
		case avg >= SLO_AVG_PURGE_WARN:
			raise(models.SLOWarn, fmt.Sprintf("average purge size %.1f >= %d", avg, SLO_AVG_PURGE_WARN))
		}
	}

	return out
}

type ServiceSLO struct {
	container *do.Injector
	clock     pkg.Clock
	locker    interfaces.Locker
	settings  *Settings

	serviceReplay *ServiceReplay
	serviceAudit  *ServiceAudit
}

func NewServiceSLO(container *do.Injector) (*ServiceSLO, error) {
	clock, err := do.Invoke[pkg.Clock](container)
	if err != nil {
		return nil, err
	}

	locker, err := do.Invoke[interfaces.Locker](container)
	if err != nil {
		return nil, err
	}

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	serviceReplay, err := do.Invoke[*ServiceReplay](container)
	if err != nil {
		return nil, err
	}

	serviceAudit, err := do.Invoke[*ServiceAudit](container)
	if err != nil {
		return nil, err
	}

	return &ServiceSLO{container, clock, locker, settings, serviceReplay, serviceAudit}, nil
}

func (service *ServiceSLO) Check(ctx context.Context) (*models.ReplayStats, models.SLOStatus, error) {
	stats, err := service.serviceReplay.Stats(ctx)
	if err != nil {
		return nil, models.SLOStatus{}, err
	}
	purges, err := service.serviceAudit.RecentPurges(ctx, SLO_PURGE_WINDOW)
	if err != nil {
		return nil, models.SLOStatus{}, err
	}
	return stats, ComputeSLO(stats, purges, service.clock.Now()), nil
}

// MaybeAutoRemediate purges the replay cache when enabled, critical and out
// of cooldown. The last remediation audit entry is the loop's only memory.
func (service *ServiceSLO) MaybeAutoRemediate(ctx context.Context, slo models.SLOStatus) (*models.AutoRemediationResult, error) {
	cooldown := service.settings.AutoRemediationCooldown
	result := &models.AutoRemediationResult{
		Enabled:         service.settings.AutoRemediationEnabled,
		CooldownMinutes: int(cooldown / time.Minute),
	}

	last, err := service.serviceAudit.LastByAction(ctx, AUDIT_ACTION_AUTO_PURGE)
	if err != nil {
		return nil, err
	}
	if last != nil {
		lastAt := last.CreatedAt
		next := lastAt.Add(cooldown)
		result.LastRunAt = &lastAt
		result.NextEligibleAt = &next
	}

	switch {
	case !result.Enabled:
		result.Reason = REMEDIATION_DISABLED
		return result, nil
	case slo.Level != models.SLOCritical:
		result.Reason = REMEDIATION_NOT_CRITICAL
		return result, nil
	case result.NextEligibleAt != nil && service.clock.Now().Before(*result.NextEligibleAt):
		result.Reason = REMEDIATION_COOLDOWN
		return result, nil
	}

	unlock, err := service.locker.Lock(ctx, LockKeyAutoRemediation())
	if err != nil {
		return nil, errors.Join(ErrRemediationLock, err)
	}
	defer unlock()

	// another caller may have acted while we waited
	if again, err := service.serviceAudit.LastByAction(ctx, AUDIT_ACTION_AUTO_PURGE); err != nil {
		return nil, err
	} else if again != nil && (last == nil || again.ID != last.ID) {
		lastAt := again.CreatedAt
		next := lastAt.Add(cooldown)
		result.LastRunAt, result.NextEligibleAt = &lastAt, &next
		result.Reason = REMEDIATION_COOLDOWN
		return result, nil
	}

	purge, err := service.serviceReplay.PurgeExpired(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := service.serviceAudit.Record(ctx, &models.AdminAuditEntry{
		Action:    AUDIT_ACTION_AUTO_PURGE,
		AdminMode: AUDIT_MODE_SYSTEM,
		Note:      fmt.Sprintf("auto purge removed %d expired replay entries", purge.DeletedCount),
		Details: &models.AuditDetails{
			Purge:       &models.PurgeDetails{Deleted: purge.DeletedCount, Mode: purge.Mode},
			Remediation: &models.RemediationDetails{Level: string(slo.Level), Reasons: slo.Reasons},
		},
	})
	if err != nil {
		return nil, err
	}

	lastAt := entry.CreatedAt
	next := lastAt.Add(cooldown)
	result.Attempted = true
	result.Reason = REMEDIATION_PURGED
	result.Deleted = purge.DeletedCount
	result.LastRunAt, result.NextEligibleAt = &lastAt, &next
	slog.Warn("auto remediation purged replay cache", "deleted", purge.DeletedCount, "reasons", slo.Reasons)
	return result, nil
}
