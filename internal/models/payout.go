package models

import "time"

type PayoutStatus string

const (
	PayoutCredited        PayoutStatus = "credited"
	PayoutAlreadyCredited PayoutStatus = "already_credited"
	PayoutDryRun          PayoutStatus = "dry_run"
	PayoutVacant          PayoutStatus = "vacant"
)

type PayoutRecipient struct {
	Rank           int          `json:"rank"`
	UserID         string       `json:"user_id,omitempty"`
	Reward         int64        `json:"reward"`
	TransactionRef string       `json:"transaction_ref,omitempty"`
	Status         PayoutStatus `json:"status"`
	EntryID        string       `json:"entry_id,omitempty"`
}

type PayoutResult struct {
	Season          string             `json:"season"`
	WindowStart     string             `json:"window_start"`
	DryRun          bool               `json:"dry_run"`
	Recipients      []*PayoutRecipient `json:"recipients"`
	Credited        int                `json:"credited"`
	AlreadyCredited int                `json:"already_credited"`
	TotalReward     int64              `json:"total_reward"`
}

type PayoutRun struct {
	At      time.Time     `json:"at"`
	Details PayoutDetails `json:"details"`
}

type PayoutSummary struct {
	Plan          map[int]int64 `json:"plan"`
	History       []*PayoutRun  `json:"history"`
	LastRunAt     *time.Time    `json:"last_run_at"`
	TotalCredited int64         `json:"total_credited"`
}
