package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Feature string

const (
	FeatureChat         Feature = "chat"
	FeatureRunner       Feature = "runner"
	FeatureAlert        Feature = "alert"
	FeatureBotCreate    Feature = "bot-create"
	FeatureSeasonReward Feature = "season-reward"
)

func (f Feature) IsValid() bool {
	switch f {
	case FeatureChat, FeatureRunner, FeatureAlert, FeatureBotCreate, FeatureSeasonReward:
		return true
	default:
		return false
	}
}

// LedgerEntry is immutable. TotalCost is positive for charges and negative for credits.
type LedgerEntry struct {
	bun.BaseModel  `bun:"table:economy_ledger"`
	ID             string    `bun:"id,pk" json:"id"`
	UserID         string    `bun:"user_id" json:"user_id"`
	Feature        Feature   `bun:"feature" json:"feature"`
	Units          int64     `bun:"units" json:"units"`
	UnitCost       int64     `bun:"unit_cost" json:"unit_cost"`
	TotalCost      int64     `bun:"total_cost" json:"total_cost"`
	Source         string    `bun:"source" json:"source"`
	TransactionRef string    `bun:"transaction_ref" json:"transaction_ref"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

type Balance struct {
	Earned    int64 `json:"earned"`
	Spent     int64 `json:"spent"`
	Available int64 `json:"available"`
}

type ChargeResult struct {
	Charged   bool         `json:"charged"`
	Duplicate bool         `json:"duplicate,omitempty"`
	Entry     *LedgerEntry `json:"entry,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Balance   Balance      `json:"balance"`
}
