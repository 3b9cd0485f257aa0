package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrUnknownTask     = errors.New("unknown task id")
	ErrInvalidProgress = errors.New("invalid progress snapshot")
	ErrUnknownFeature  = errors.New("unknown feature")
	ErrInvalidUnits    = errors.New("units must be positive")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrMissingRef      = errors.New("transaction ref required")
	ErrRefConflict     = errors.New("transaction ref belongs to another user")
	ErrInvalidSeason   = errors.New("season must be daily or weekly")
	ErrUserLock        = errors.New("user locked")
	ErrPayoutLock      = errors.New("payout locked")
	ErrRemediationLock = errors.New("auto remediation locked")
)

const (
	CONFIG_SERVER_MODE                       = "SERVER_MODE"
	CONFIG_STORAGE_MODE                      = "STORAGE_MODE"
	CONFIG_REMOTE_URL                        = "REMOTE_URL"
	CONFIG_REMOTE_KEY                        = "REMOTE_KEY"
	CONFIG_REMOTE_TIMEOUT_SECONDS            = "REMOTE_TIMEOUT_SECONDS"
	CONFIG_REMOTE_RETRIES                    = "REMOTE_RETRIES"
	CONFIG_TABLE_PROGRESS                    = "TABLE_PROGRESS"
	CONFIG_TABLE_AUDIT                       = "TABLE_AUDIT"
	CONFIG_TABLE_REPLAY                      = "TABLE_REPLAY"
	CONFIG_TABLE_LEDGER                      = "TABLE_LEDGER"
	CONFIG_FEATURE_COST_CHAT                 = "FEATURE_COST_CHAT"
	CONFIG_FEATURE_COST_RUNNER               = "FEATURE_COST_RUNNER"
	CONFIG_FEATURE_COST_ALERT                = "FEATURE_COST_ALERT"
	CONFIG_FEATURE_COST_BOT_CREATE           = "FEATURE_COST_BOT_CREATE"
	CONFIG_AUTO_REMEDIATION_ENABLED          = "AUTO_REMEDIATION_ENABLED"
	CONFIG_AUTO_REMEDIATION_COOLDOWN_MINUTES = "AUTO_REMEDIATION_COOLDOWN_MINUTES"
	CONFIG_PAYOUT_PLAN                       = "PAYOUT_PLAN"
	CONFIG_REPLAY_TTL_SECONDS                = "REPLAY_TTL_SECONDS"
	CONFIG_REPLAY_TTL_MIN_SECONDS            = "REPLAY_TTL_MIN_SECONDS"
	CONFIG_REPLAY_TTL_MAX_SECONDS            = "REPLAY_TTL_MAX_SECONDS"
	CONFIG_ADMIN_API_KEY                     = "ADMIN_API_KEY"
	CONFIG_ADMIN_BEARER_TOKEN                = "ADMIN_BEARER_TOKEN"
	CONFIG_CRON_SECRET                       = "CRON_SECRET"
	CONFIG_ADMIN_RATE_LIMIT_PER_MINUTE       = "ADMIN_RATE_LIMIT_PER_MINUTE"
	CONFIG_LEADERBOARD_CACHE_SECONDS         = "LEADERBOARD_CACHE_SECONDS"

	SERVER_MODE_DEVELOPMENT = "development"
	SERVER_MODE_STAGING     = "staging"
	SERVER_MODE_PRODUCTION  = "production"

	LEADERBOARD_DEFAULT_LIMIT = 20
	LEADERBOARD_MAX_LIMIT     = 100

	DEFAULT_REMOTE_TIMEOUT_SECONDS = 4
	MIN_REMOTE_TIMEOUT_SECONDS     = 1
	MAX_REMOTE_TIMEOUT_SECONDS     = 9

	DEFAULT_REPLAY_TTL     = 120 * time.Second
	DEFAULT_REPLAY_TTL_MIN = 5 * time.Second
	DEFAULT_REPLAY_TTL_MAX = 10 * time.Minute

	DEFAULT_AUTO_REMEDIATION_COOLDOWN = 30 * time.Minute
	DEFAULT_ADMIN_RATE_LIMIT          = 10
	DEFAULT_PAYOUT_PLAN               = "1:500,2:250,3:100"

	AUDIT_NOTE_MAX_RUNES  = 280
	AUDIT_DEFAULT_LIMIT   = 20
	AUDIT_MAX_LIMIT       = 150
	SLO_PURGE_WINDOW      = 5
	PAYOUT_HISTORY_LIMIT  = 10
	OVERVIEW_SAMPLE_LIMIT = 10
	LEDGER_DEFAULT_LIMIT  = 50
	LEDGER_MAX_LIMIT      = 500
	MAX_CHARGE_UNITS      = 10_000
	MAX_REF_LENGTH        = 200

	CACHE_TTL_5_SECONDS = 5 * time.Second
)

func LockKeyUserProgress(userID string) string {
	return fmt.Sprintf("lock:progress:%s", userID)
}

func LockKeyUserLedger(userID string) string {
	return fmt.Sprintf("lock:ledger:%s", userID)
}

func LockKeyPayout(season string, windowDate string) string {
	return fmt.Sprintf("lock:payout:%s:%s", season, windowDate)
}

func LockKeyAutoRemediation() string {
	return "lock:auto-remediation"
}

func DBKeyLeaderboard(season string) string {
	return fmt.Sprintf("leaderboard:%s", season)
}

func LimitKeyAdmin(mode string, ip string) string {
	return fmt.Sprintf("limit:admin:%s:%s", mode, ip)
}
