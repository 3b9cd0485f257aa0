package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"haxquest/internal/models"
	"haxquest/internal/scoring"
	"haxquest/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/samber/do"
)

const (
	SPEC_REPLAY_SWEEP  = "*/15 * * * *"
	SPEC_SLO_CHECK     = "*/5 * * * *"
	SPEC_DAILY_PAYOUT  = "55 23 * * *"
	SPEC_WEEKLY_PAYOUT = "55 23 * * 0"

	JOB_TIMEOUT = 2 * time.Minute
)

type Job interface {
	Name() string
	Spec() string
	Run(ctx context.Context) error
}

// NewRunner schedules jobs on a UTC cron. Start or Run it to begin.
func NewRunner(jobs ...Job) (*cron.Cron, error) {
	runner := cron.New(cron.WithLocation(time.UTC))
	for _, job := range jobs {
		job := job
		_, err := runner.AddFunc(job.Spec(), func() {
			ctx, cancel := context.WithTimeout(context.Background(), JOB_TIMEOUT)
			defer cancel()

			started := time.Now()
			if err := job.Run(ctx); err != nil {
				slog.Error("cron job failed", "job", job.Name(), "error", err)
				return
			}
			slog.Info("cron job done", "job", job.Name(), "took", time.Since(started))
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		slog.Info("cron job scheduled", "job", job.Name(), "spec", job.Spec())
	}
	return runner, nil
}

// Default returns the maintenance jobs every deployment runs.
func Default(container *do.Injector) ([]Job, error) {
	sweep, err := NewReplaySweepJob(container)
	if err != nil {
		return nil, err
	}
	slo, err := NewSLOJob(container)
	if err != nil {
		return nil, err
	}
	payout, err := NewPayoutJob(container, scoring.SeasonWeekly)
	if err != nil {
		return nil, err
	}
	return []Job{sweep, slo, payout}, nil
}

// ReplaySweepJob deletes expired replay entries and records the sweep so the
// SLO monitor can see when the cache was last purged.
type ReplaySweepJob struct {
	serviceReplay *services.ServiceReplay
	serviceAudit  *services.ServiceAudit
}

func NewReplaySweepJob(container *do.Injector) (*ReplaySweepJob, error) {
	serviceReplay, err := do.Invoke[*services.ServiceReplay](container)
	if err != nil {
		return nil, err
	}

	serviceAudit, err := do.Invoke[*services.ServiceAudit](container)
	if err != nil {
		return nil, err
	}

	return &ReplaySweepJob{serviceReplay, serviceAudit}, nil
}

func (j *ReplaySweepJob) Name() string { return services.AUDIT_ACTION_SCHEDULED_PURGE }
func (j *ReplaySweepJob) Spec() string { return SPEC_REPLAY_SWEEP }

func (j *ReplaySweepJob) Run(ctx context.Context) error {
	purge, err := j.serviceReplay.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	_, err = j.serviceAudit.Record(ctx, &models.AdminAuditEntry{
		Action:    services.AUDIT_ACTION_SCHEDULED_PURGE,
		AdminMode: services.AUDIT_MODE_CRON,
		Note:      fmt.Sprintf("scheduled sweep removed %d expired replay entries", purge.DeletedCount),
		Details: &models.AuditDetails{
			Purge: &models.PurgeDetails{Deleted: purge.DeletedCount, Mode: purge.Mode},
		},
	})
	return err
}

type SLOJob struct {
	serviceSLO *services.ServiceSLO
}

func NewSLOJob(container *do.Injector) (*SLOJob, error) {
	serviceSLO, err := do.Invoke[*services.ServiceSLO](container)
	if err != nil {
		return nil, err
	}
	return &SLOJob{serviceSLO}, nil
}

func (j *SLOJob) Name() string { return "slo-check" }
func (j *SLOJob) Spec() string { return SPEC_SLO_CHECK }

func (j *SLOJob) Run(ctx context.Context) error {
	_, slo, err := j.serviceSLO.Check(ctx)
	if err != nil {
		return err
	}
	if slo.Level != models.SLOOk {
		slog.Warn("replay cache slo degraded", "level", slo.Level, "reasons", slo.Reasons)
	}
	result, err := j.serviceSLO.MaybeAutoRemediate(ctx, slo)
	if err != nil {
		return err
	}
	slog.Debug("auto remediation", "reason", result.Reason, "deleted", result.Deleted)
	return nil
}

// PayoutJob credits the season window shortly before it closes.
type PayoutJob struct {
	season        scoring.Season
	servicePayout *services.ServicePayout
}

func NewPayoutJob(container *do.Injector, season scoring.Season) (*PayoutJob, error) {
	servicePayout, err := do.Invoke[*services.ServicePayout](container)
	if err != nil {
		return nil, err
	}
	return &PayoutJob{season, servicePayout}, nil
}

func (j *PayoutJob) Name() string { return "payout-" + string(j.season) }
func (j *PayoutJob) Spec() string {
	if j.season == scoring.SeasonDaily {
		return SPEC_DAILY_PAYOUT
	}
	return SPEC_WEEKLY_PAYOUT
}

func (j *PayoutJob) Run(ctx context.Context) error {
	_, err := j.servicePayout.RunPayout(ctx, j.season, false, services.Actor{Mode: services.AUDIT_MODE_CRON})
	return err
}
