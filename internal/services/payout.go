package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg"
	"haxquest/internal/scoring"

	"github.com/samber/do"
)

type ServicePayout struct {
	container *do.Injector
	clock     pkg.Clock
	locker    interfaces.Locker
	settings  *Settings

	serviceLeaderboard *ServiceLeaderboard
	serviceEconomy     *ServiceEconomy
	serviceAudit       *ServiceAudit
}

func NewServicePayout(container *do.Injector) (*ServicePayout, error) {
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

	serviceLeaderboard, err := do.Invoke[*ServiceLeaderboard](container)
	if err != nil {
		return nil, err
	}

	serviceEconomy, err := do.Invoke[*ServiceEconomy](container)
	if err != nil {
		return nil, err
	}

	serviceAudit, err := do.Invoke[*ServiceAudit](container)
	if err != nil {
		return nil, err
	}

	return &ServicePayout{container, clock, locker, settings, serviceLeaderboard, serviceEconomy, serviceAudit}, nil
}

func PayoutRef(season scoring.Season, windowDate string, userID string, rank int) string {
	return fmt.Sprintf("season:%s:%s:%s:rank%d", season, windowDate, userID, rank)
}

// ParsePayoutSeason accepts daily and weekly; all_time has no window to pay.
func ParsePayoutSeason(s string) (scoring.Season, error) {
	if s == "" {
		return scoring.SeasonWeekly, nil
	}
	season, err := scoring.ParseSeason(s)
	if err != nil || season == scoring.SeasonAllTime {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeason, s)
	}
	return season, nil
}

// RunPayout credits the plan's ranks for the current window. Refs derive
// from (season, window, user, rank), so repeated runs credit nobody twice.
// When several users share a rank the first in leaderboard order is paid.
func (service *ServicePayout) RunPayout(ctx context.Context, season scoring.Season, dryRun bool, actor Actor) (*models.PayoutResult, error) {
	if season != scoring.SeasonDaily && season != scoring.SeasonWeekly {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeason, season)
	}

	now := service.clock.Now()
	windowDate := pkg.FormatDate(*scoring.WindowStart(season, now))

	unlock, err := service.locker.Lock(ctx, LockKeyPayout(string(season), windowDate))
	if err != nil {
		return nil, errors.Join(ErrPayoutLock, err)
	}
	defer unlock()

	plan := service.settings.PayoutPlan
	ranks := PlanRanks(plan)
	standings, err := service.serviceLeaderboard.Standings(ctx, season, 0)
	if err != nil {
		return nil, err
	}
	winners := make(map[int]*models.LeaderboardEntry, len(ranks))
	for _, e := range standings {
		if _, ok := winners[e.Rank]; !ok {
			winners[e.Rank] = e
		}
	}

	result := &models.PayoutResult{Season: string(season), WindowStart: windowDate, DryRun: dryRun}
	for _, rank := range ranks {
		recipient := &models.PayoutRecipient{Rank: rank, Reward: plan[rank]}
		result.Recipients = append(result.Recipients, recipient)

		winner, ok := winners[rank]
		if !ok {
			recipient.Status = models.PayoutVacant
			continue
		}
		recipient.UserID = winner.UserID
		recipient.TransactionRef = PayoutRef(season, windowDate, winner.UserID, rank)

		existing, err := service.serviceEconomy.FindByRef(ctx, recipient.TransactionRef)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			recipient.Status = models.PayoutAlreadyCredited
			recipient.EntryID = existing.ID
			result.AlreadyCredited++
			continue
		}
		if dryRun {
			recipient.Status = models.PayoutDryRun
			continue
		}

		credit, err := service.serviceEconomy.CreditSeasonReward(ctx, winner.UserID, recipient.Reward, recipient.TransactionRef, "season-payout:"+string(season))
		if err != nil {
			return nil, err
		}
		recipient.EntryID = credit.Entry.ID
		if credit.Duplicate {
			recipient.Status = models.PayoutAlreadyCredited
			result.AlreadyCredited++
			continue
		}
		recipient.Status = models.PayoutCredited
		result.Credited++
		result.TotalReward += recipient.Reward
	}

	if !dryRun {
		_, err := service.serviceAudit.Record(ctx, &models.AdminAuditEntry{
			Action:    AUDIT_ACTION_SEASON_PAYOUT,
			AdminMode: actor.Mode,
			RequestIP: actor.IP,
			Note:      fmt.Sprintf("%s payout for window %s: %d credited, %d already credited", season, windowDate, result.Credited, result.AlreadyCredited),
			Details: &models.AuditDetails{Payout: &models.PayoutDetails{
				Season:          string(season),
				WindowStart:     windowDate,
				Credited:        result.Credited,
				AlreadyCredited: result.AlreadyCredited,
				TotalReward:     result.TotalReward,
			}},
		})
		if err != nil {
			return nil, err
		}
	}

	slog.Info("season payout", "season", season, "window", windowDate, "dry_run", dryRun, "credited", result.Credited, "already_credited", result.AlreadyCredited)
	return result, nil
}

func (service *ServicePayout) Summary(ctx context.Context) (*models.PayoutSummary, error) {
	history, err := service.serviceAudit.PayoutHistory(ctx, PAYOUT_HISTORY_LIMIT)
	if err != nil {
		return nil, err
	}
	summary := &models.PayoutSummary{Plan: service.settings.PayoutPlan, History: history}
	for _, run := range history {
		summary.TotalCredited += run.Details.TotalReward
	}
	if len(history) > 0 {
		at := history[0].At
		summary.LastRunAt = &at
	}
	return summary, nil
}
