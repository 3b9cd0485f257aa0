package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReplayEntry struct {
	bun.BaseModel `bun:"table:admin_action_replay"`
	Key           string    `bun:"key,pk" json:"key"`
	Action        string    `bun:"action" json:"action"`
	TargetUserID  string    `bun:"target_user_id" json:"target_user_id,omitempty"`
	Status        int       `bun:"status" json:"status"`
	ResponseBody  string    `bun:"response_body" json:"response_body"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at" json:"expires_at"`
}

func (e *ReplayEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

type PurgeResult struct {
	DeletedCount int    `json:"deleted_count"`
	Mode         string `json:"mode"`
}

type ReplayStats struct {
	Total           int        `json:"total"`
	Live            int        `json:"live"`
	Expired         int        `json:"expired"`
	ExpiredRatio    float64    `json:"expired_ratio"`
	OldestExpiredAt *time.Time `json:"oldest_expired_at"`
}
