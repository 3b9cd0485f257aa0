package models

import "time"

type SLOLevel string

const (
	SLOOk       SLOLevel = "ok"
	SLOWarn     SLOLevel = "warn"
	SLOCritical SLOLevel = "critical"
)

type SLOStatus struct {
	Level     SLOLevel  `json:"level"`
	Reasons   []string  `json:"reasons"`
	CheckedAt time.Time `json:"checked_at"`
}

type PurgeRecord struct {
	At      time.Time `json:"at"`
	Deleted int       `json:"deleted"`
}

type AutoRemediationResult struct {
	Enabled         bool       `json:"enabled"`
	Attempted       bool       `json:"attempted"`
	Reason          string     `json:"reason"`
	Deleted         int        `json:"deleted"`
	CooldownMinutes int        `json:"cooldown_minutes"`
	LastRunAt       *time.Time `json:"last_run_at"`
	NextEligibleAt  *time.Time `json:"next_eligible_at"`
}
