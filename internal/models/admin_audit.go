package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AdminAuditEntry struct {
	bun.BaseModel `bun:"table:admin_audit_log"`
	ID            string        `bun:"id,pk" json:"id"`
	Action        string        `bun:"action" json:"action"`
	TargetUserID  string        `bun:"target_user_id" json:"target_user_id,omitempty"`
	AdminMode     string        `bun:"admin_mode" json:"admin_mode"`
	RequestIP     string        `bun:"request_ip" json:"request_ip"`
	Note          string        `bun:"note" json:"note"`
	Details       *AuditDetails `bun:"details,type:jsonb" json:"details,omitempty"`
	CreatedAt     time.Time     `bun:"created_at" json:"created_at"`
}

// AuditDetails carries the typed facts of an action; readers never parse Note.
type AuditDetails struct {
	Purge       *PurgeDetails       `json:"purge,omitempty"`
	Payout      *PayoutDetails      `json:"payout,omitempty"`
	Remediation *RemediationDetails `json:"remediation,omitempty"`
}

type PurgeDetails struct {
	Deleted int    `json:"deleted"`
	Mode    string `json:"mode"`
}

type PayoutDetails struct {
	Season          string `json:"season"`
	WindowStart     string `json:"window_start"`
	Credited        int    `json:"credited"`
	AlreadyCredited int    `json:"already_credited"`
	DryRun          bool   `json:"dry_run"`
	TotalReward     int64  `json:"total_reward"`
}

type RemediationDetails struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}
