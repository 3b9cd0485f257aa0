package models

import "time"

type StorageStatus struct {
	ConfiguredMode string     `json:"configured_mode"`
	Mode           string     `json:"mode"`
	Fallback       bool       `json:"fallback"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	Failures       int64      `json:"failures"`
	RemoteCalls    int64      `json:"remote_calls"`
}

type ReadinessCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

type Overview struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	Storage         StorageStatus         `json:"storage"`
	RecentProgress  []*ProgressSample     `json:"recent_progress"`
	Audit           []*AdminAuditEntry    `json:"audit"`
	Replay          ReplayStats           `json:"replay"`
	SLO             SLOStatus             `json:"slo"`
	AutoRemediation AutoRemediationResult `json:"auto_remediation"`
	Readiness       []*ReadinessCheck     `json:"readiness"`
	Payouts         PayoutSummary         `json:"payouts"`
}
