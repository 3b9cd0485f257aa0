package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"haxquest/internal/interfaces"
	"haxquest/internal/models"
	"haxquest/internal/pkg/limiter"

	"github.com/go-redis/redis_rate/v10"
	"github.com/samber/do"
	"github.com/segmentio/encoding/json"
)

type Action string

const (
	ActionResetQuest      Action = "reset-quest"
	ActionRecomputeStreak Action = "recompute-streak"
	ActionClearMemory     Action = "clear-memory"
	ActionPurgeReplay     Action = "purge-replay"
	ActionRunPayout       Action = "run-payout"
	ActionAutoRemediate   Action = "auto-remediate"
)

var Actions = []Action{
	ActionResetQuest,
	ActionRecomputeStreak,
	ActionClearMemory,
	ActionPurgeReplay,
	ActionRunPayout,
	ActionAutoRemediate,
}

var ErrUnknownAction = errors.New("unknown action")

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func (a Action) NeedsUser() bool {
	switch a {
	case ActionResetQuest, ActionRecomputeStreak, ActionClearMemory:
		return true
	}
	return false
}

type AdminRequest struct {
	Action         string `json:"action"`
	UserID         string `json:"user_id"`
	Season         string `json:"season"`
	DryRun         bool   `json:"dry_run"`
	Note           string `json:"note"`
	IdempotencyKey string `json:"-"`
	Actor          Actor  `json:"-"`
}

// AdminResponse is the wire body of every admin action, stored verbatim for replay.
type AdminResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Action  string `json:"action"`
	Data    any    `json:"data"`
}

type AdminResult struct {
	Status   int
	Body     []byte
	Replayed bool
}

type RemediationOutcome struct {
	SLO    models.SLOStatus              `json:"slo"`
	Result *models.AutoRemediationResult `json:"result"`
}

type ServiceAdmin struct {
	container *do.Injector
	limiter   interfaces.Limiter
	settings  *Settings

	serviceProgress *ServiceProgress
	serviceReplay   *ServiceReplay
	serviceAudit    *ServiceAudit
	servicePayout   *ServicePayout
	serviceSLO      *ServiceSLO
}

func NewServiceAdmin(container *do.Injector) (*ServiceAdmin, error) {
	limiter, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	settings, err := do.Invoke[*Settings](container)
	if err != nil {
		return nil, err
	}

	serviceProgress, err := do.Invoke[*ServiceProgress](container)
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

	servicePayout, err := do.Invoke[*ServicePayout](container)
	if err != nil {
		return nil, err
	}

	serviceSLO, err := do.Invoke[*ServiceSLO](container)
	if err != nil {
		return nil, err
	}

	return &ServiceAdmin{container, limiter, settings, serviceProgress, serviceReplay, serviceAudit, servicePayout, serviceSLO}, nil
}

// Execute runs one admin action with replay protection: a live entry for the
// idempotency key is answered verbatim without side effects, otherwise the
// action runs and any non-5xx outcome is remembered.
func (service *ServiceAdmin) Execute(ctx context.Context, req *AdminRequest) (*AdminResult, error) {
	key := NormalizeKey(req.IdempotencyKey)
	if key != "" {
		hit, err := service.serviceReplay.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			if hit.Action != strings.ToLower(strings.TrimSpace(req.Action)) {
				return service.respond(http.StatusConflict, req.Action, false, "idempotency key already used for "+hit.Action, nil)
			}
			return &AdminResult{Status: hit.Status, Body: []byte(hit.ResponseBody), Replayed: true}, nil
		}
	}

	if service.settings.AdminRateLimit > 0 {
		err := service.limiter.Allow(ctx, LimitKeyAdmin(req.Actor.Mode, req.Actor.IP), redis_rate.PerMinute(service.settings.AdminRateLimit))
		if errors.Is(err, limiter.ErrRateLimited) {
			return service.respond(http.StatusTooManyRequests, req.Action, false, "rate limited", nil)
		}
		if err != nil {
			slog.Warn("admin rate limiter unavailable", "error", err)
		}
	}

	status, message, data, details, target := service.dispatch(ctx, req)
	result, err := service.respond(status, req.Action, status < http.StatusBadRequest, message, data)
	if err != nil {
		return nil, err
	}

	if status < http.StatusBadRequest {
		_, err := service.serviceAudit.Record(ctx, &models.AdminAuditEntry{
			Action:       req.Action,
			TargetUserID: target,
			AdminMode:    req.Actor.Mode,
			RequestIP:    req.Actor.IP,
			Note:         noteOr(req.Note, message),
			Details:      details,
		})
		if err != nil {
			slog.Error("admin audit write failed", "action", req.Action, "error", err)
		}
	}

	if key != "" && status < http.StatusInternalServerError {
		if _, err := service.serviceReplay.Remember(ctx, key, req.Action, target, status, result.Body, 0); err != nil {
			slog.Error("replay remember failed", "action", req.Action, "error", err)
		}
	}
	return result, nil
}

func (service *ServiceAdmin) dispatch(ctx context.Context, req *AdminRequest) (status int, message string, data any, details *models.AuditDetails, target string) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return http.StatusBadRequest, err.Error(), nil, nil, ""
	}
	req.Action = string(action)

	if action.NeedsUser() {
		target, err = NormalizeUserID(req.UserID)
		if err != nil {
			return http.StatusBadRequest, err.Error(), nil, nil, ""
		}
	}

	switch action {
	case ActionResetQuest:
		data, err = service.serviceProgress.ResetDailyQuest(ctx, target)
		message = "daily quest reset"
	case ActionRecomputeStreak:
		data, err = service.serviceProgress.RecomputeStreak(ctx, target)
		message = "streak recomputed"
	case ActionClearMemory:
		var n int
		n, err = service.serviceProgress.EvictFromMemory(ctx, target)
		data = map[string]int{"evicted": n}
		message = "memory copy cleared"
	case ActionPurgeReplay:
		var purge *models.PurgeResult
		purge, err = service.serviceReplay.PurgeExpired(ctx)
		if err == nil {
			data = purge
			details = &models.AuditDetails{Purge: &models.PurgeDetails{Deleted: purge.DeletedCount, Mode: purge.Mode}}
			message = fmt.Sprintf("purged %d expired replay entries", purge.DeletedCount)
		}
	case ActionRunPayout:
		var payout *models.PayoutResult
		season, perr := ParsePayoutSeason(req.Season)
		if perr != nil {
			return http.StatusBadRequest, perr.Error(), nil, nil, ""
		}
		payout, err = service.servicePayout.RunPayout(ctx, season, req.DryRun, req.Actor)
		if err == nil {
			data = payout
			details = &models.AuditDetails{Payout: &models.PayoutDetails{
				Season:          payout.Season,
				WindowStart:     payout.WindowStart,
				Credited:        payout.Credited,
				AlreadyCredited: payout.AlreadyCredited,
				DryRun:          payout.DryRun,
				TotalReward:     payout.TotalReward,
			}}
			message = fmt.Sprintf("%s payout: %d credited, %d already credited", payout.Season, payout.Credited, payout.AlreadyCredited)
		}
	case ActionAutoRemediate:
		var outcome RemediationOutcome
		_, outcome.SLO, err = service.serviceSLO.Check(ctx)
		if err == nil {
			outcome.Result, err = service.serviceSLO.MaybeAutoRemediate(ctx, outcome.SLO)
		}
		if err == nil {
			data = outcome
			details = &models.AuditDetails{Remediation: &models.RemediationDetails{Level: string(outcome.SLO.Level), Reasons: outcome.SLO.Reasons}}
			message = "auto remediation " + outcome.Result.Reason
		}
	}

	if err != nil {
		return statusOf(err), err.Error(), nil, nil, target
	}
	return http.StatusOK, message, data, details, target
}

func (service *ServiceAdmin) respond(status int, action string, ok bool, message string, data any) (*AdminResult, error) {
	body, err := json.Marshal(AdminResponse{OK: ok, Message: message, Action: action, Data: data})
	if err != nil {
		return nil, err
	}
	return &AdminResult{Status: status, Body: body}, nil
}

func statusOf(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserLock), errors.Is(err, ErrPayoutLock), errors.Is(err, ErrRemediationLock):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// IsValidation reports whether err is a caller mistake rather than a fault.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidUserID, ErrUnknownTask, ErrInvalidProgress, ErrUnknownFeature,
		ErrInvalidUnits, ErrInvalidAmount, ErrMissingRef, ErrRefConflict,
		ErrInvalidSeason, ErrUnknownAction,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func noteOr(note, fallback string) string {
	if strings.TrimSpace(note) != "" {
		return note
	}
	return fallback
}
