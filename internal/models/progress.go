package models

import (
	"time"

	"github.com/uptrace/bun"
)

const DateLayout = "2006-01-02"

type ProgressSnapshot struct {
	bun.BaseModel    `bun:"table:progress_snapshots"`
	UserID           string     `bun:"user_id,pk" json:"user_id"`
	CompletedTaskIDs []string   `bun:"completed_task_ids,type:jsonb" json:"completed_task_ids"`
	StreakDays       int        `bun:"streak_days" json:"streak_days"`
	BonusXP          int        `bun:"bonus_xp" json:"bonus_xp"`
	BonusHax         int        `bun:"bonus_hax" json:"bonus_hax"`
	DailyQuest       DailyQuest `bun:"daily_quest,type:jsonb" json:"daily_quest"`
	LastActiveDate   string     `bun:"last_active_date" json:"last_active_date"`
	UpdatedAt        time.Time  `bun:"updated_at" json:"updated_at"`
}

type DailyQuest struct {
	TaskID        string `json:"task_id"`
	RequiredScore int    `json:"required_score"`
	Completed     bool   `json:"completed"`
	AssignedDate  string `json:"assigned_date"`
}

func (p *ProgressSnapshot) HasTask(taskID string) bool {
	for _, id := range p.CompletedTaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// ProgressSample is the trimmed view shown on the admin overview.
type ProgressSample struct {
	UserID         string    `json:"user_id"`
	CompletedTasks int       `json:"completed_tasks"`
	StreakDays     int       `json:"streak_days"`
	QuestCompleted bool      `json:"quest_completed"`
	UpdatedAt      time.Time `json:"updated_at"`
}
